package system

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/ivlev/scriptcam/internal/logger"
)

// InitResourceLimits raises the open file limit; ffmpeg children inherit it.
func InitResourceLimits(log *logger.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("failed to read open file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("failed to raise open file limit")
		return
	}
	log.Debug().Uint64("nofile", uint64(rLimit.Cur)).Msg("open file limit raised")
}

// BestH264Encoder picks a hardware H.264 encoder when ffmpeg has one,
// otherwise libx264.
func BestH264Encoder(ctx context.Context, ffmpegBin string) string {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	out, err := exec.CommandContext(ctx, ffmpegBin, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	// Priority: VideoToolbox (macOS), NVENC (NVIDIA), then software
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return "libx264"
}

// FFmpegMajorVersion returns the major release of ffmpeg, or 0 when it
// cannot be determined (missing binary, git snapshot builds).
func FFmpegMajorVersion(ctx context.Context, ffmpegBin string) int {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	out, err := exec.CommandContext(ctx, ffmpegBin, "-hide_banner", "-version").Output()
	if err != nil {
		return 0
	}
	return parseMajorVersion(string(out))
}

// parseMajorVersion reads "ffmpeg version 6.1.1-3ubuntu5 ..." or "ffmpeg
// version n7.0 ...".
func parseMajorVersion(banner string) int {
	fields := strings.Fields(banner)
	if len(fields) < 3 || fields[0] != "ffmpeg" || fields[1] != "version" {
		return 0
	}
	v := strings.TrimPrefix(fields[2], "n")
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 || end == len(v) || v[end] != '.' {
		return 0
	}
	major, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0
	}
	return major
}

// EnsureFreeSpace fails when the filesystem holding dir has less than min bytes free.
func EnsureFreeSpace(ctx context.Context, dir string, min uint64) error {
	if min == 0 {
		return nil
	}
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return fmt.Errorf("disk usage %s: %w", dir, err)
	}
	if usage.Free < min {
		return fmt.Errorf("only %d MiB free in %s, need %d MiB", usage.Free>>20, dir, min>>20)
	}
	return nil
}

// ExportWorkers returns how many re-encodes may run at once: half the
// physical cores, at least one.
func ExportWorkers() int {
	n, err := cpu.Counts(false)
	if err != nil || n < 2 {
		return 1
	}
	return n / 2
}
