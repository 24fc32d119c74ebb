package processors

import (
	"os"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"videoDigest/config"
)

// DetectGPUType probes the host for usable video hardware. Returns "nvidia",
// "amd", "intel", or "" when nothing usable is present.
func DetectGPUType() string {
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		if err := exec.Command("nvidia-smi").Run(); err == nil && hasFFmpegEncoder("h264_nvenc") {
			return "nvidia"
		}
	}
	if _, err := os.Stat("/dev/dri"); err == nil {
		if hasFFmpegEncoder("h264_vaapi") {
			return "amd"
		}
		if hasFFmpegEncoder("h264_qsv") {
			return "intel"
		}
	}
	return ""
}

func hasFFmpegEncoder(encoder string) bool {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), encoder)
}

// hwaccelInput returns input-side kwargs enabling hardware decode when the
// configuration asks for it and the host supports it. A nil result means
// plain software decode.
func hwaccelInput(cfg *config.Config) ffmpeg.KwArgs {
	if cfg == nil || !cfg.GPUAcceleration {
		return nil
	}
	gpu := cfg.GPUType
	if gpu == "" || gpu == "auto" {
		gpu = DetectGPUType()
	}
	switch gpu {
	case "nvidia":
		return ffmpeg.KwArgs{"hwaccel": "cuda"}
	case "amd":
		return ffmpeg.KwArgs{"hwaccel": "vaapi"}
	case "intel":
		return ffmpeg.KwArgs{"hwaccel": "qsv"}
	}
	return nil
}
