package ffmpeg

import (
	"context"
	"os/exec"
	"strings"
)

// NvencAvailable reports whether the local ffmpeg build exposes the
// h264_nvenc encoder. The probe runs once per executor; encoder
// selection falls back to libx264 when NVENC is missing.
func (e *Executor) NvencAvailable(ctx context.Context) bool {
	if e.nvencProbed {
		return e.nvencOK
	}
	e.nvencProbed = true

	probeCtx, cancel := e.invocationContext(ctx)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, e.ffmpegPath, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		e.logger.Warn().Err(err).Msg("encoder probe failed, assuming CPU only")
		return false
	}

	e.nvencOK = strings.Contains(string(output), NvencVideoCodec)
	e.logger.Debug().Bool("nvenc", e.nvencOK).Msg("encoder probe complete")
	return e.nvencOK
}

// SelectEncoder picks NVENC when hwaccel is requested and available,
// otherwise software x264 with the given preset.
func (e *Executor) SelectEncoder(ctx context.Context, hwaccel bool, preset string) Encoder {
	if hwaccel && e.NvencAvailable(ctx) {
		return NvencEncoder()
	}
	return CPUEncoder(preset)
}
