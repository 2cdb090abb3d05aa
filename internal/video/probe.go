package video

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StreamInfo describes the first video track of a file.
type StreamInfo struct {
	Width    int
	Height   int
	Rotation int // clockwise display rotation in degrees: 0, 90, 180 or 270
	Duration float64
	HasAudio bool
}

// FFprobe reads stream metadata with the ffprobe binary.
type FFprobe struct {
	Bin string
}

type probeOutput struct {
	Streams []struct {
		CodecType    string            `json:"codec_type"`
		Width        int               `json:"width"`
		Height       int               `json:"height"`
		Duration     string            `json:"duration"`
		Tags         map[string]string `json:"tags"`
		SideDataList []struct {
			SideDataType string  `json:"side_data_type"`
			Rotation     float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the video stream info of path.
func (p FFprobe) Probe(ctx context.Context, path string) (*StreamInfo, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbe(out)
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (*StreamInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := &StreamInfo{}
	found := false
	for _, s := range po.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if found {
				continue
			}
			found = true
			info.Width, info.Height = s.Width, s.Height
			info.Duration = parseSeconds(s.Duration)

			// the rotate tag is clockwise, the display matrix counter-clockwise
			if v, ok := s.Tags["rotate"]; ok {
				deg, _ := strconv.ParseFloat(v, 64)
				info.Rotation = normalizeRotation(deg)
			}
			for _, sd := range s.SideDataList {
				if sd.SideDataType == "Display Matrix" {
					info.Rotation = normalizeRotation(-sd.Rotation)
				}
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("no video stream")
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid video size %dx%d", info.Width, info.Height)
	}
	if info.Duration == 0 {
		info.Duration = parseSeconds(po.Format.Duration)
	}
	return info, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// normalizeRotation snaps deg to the nearest quarter turn in [0, 360).
func normalizeRotation(deg float64) int {
	q := int(math.Round(deg / 90))
	q = ((q % 4) + 4) % 4
	return q * 90
}
