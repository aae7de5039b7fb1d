package bus

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	loop "dbw-bridge/dbw_node/control_loop"
)

// Line protocol tags. One message per line, comma separated:
//
//	DBW,<0|1>
//	TWIST,<linear m/s>,<angular rad/s>
//	VEL,<m/s>
//	POSE,<x>,<y>
//	PATH,<x0>,<y0>,<x1>,<y1>,...
const (
	TagDBW   = "DBW"
	TagTwist = "TWIST"
	TagVel   = "VEL"
	TagPose  = "POSE"
	TagPath  = "PATH"
)

// DecodeLine parses one line and applies it to sink. Blank lines and lines
// starting with '#' are accepted and ignored.
func DecodeLine(line string, sink InputSink) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	parts := strings.Split(line, ",")
	tag := strings.ToUpper(strings.TrimSpace(parts[0]))
	nums, err := parseFloats(parts[1:])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, tag, err)
	}

	switch tag {
	case TagDBW:
		if len(nums) != 1 {
			return arity(tag, 1, len(nums))
		}
		sink.SetEnabled(nums[0] != 0)
	case TagTwist:
		if len(nums) != 2 {
			return arity(tag, 2, len(nums))
		}
		sink.SetMotionRequest(loop.MotionRequest{LinearVelocity: nums[0], AngularVelocity: nums[1]})
	case TagVel:
		if len(nums) != 1 {
			return arity(tag, 1, len(nums))
		}
		sink.SetVelocity(nums[0])
	case TagPose:
		if len(nums) != 2 {
			return arity(tag, 2, len(nums))
		}
		sink.SetPose(loop.Pose{X: nums[0], Y: nums[1]})
	case TagPath:
		if len(nums) == 0 || len(nums)%2 != 0 {
			return fmt.Errorf("%w: %s needs x,y pairs, got %d values", ErrMalformed, tag, len(nums))
		}
		path := make(loop.Path, 0, len(nums)/2)
		for i := 0; i < len(nums); i += 2 {
			path = append(path, loop.Pose{X: nums[i], Y: nums[i+1]})
		}
		sink.SetPath(path)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, tag)
	}
	return nil
}

// EncodePath formats a PATH line.
func EncodePath(path loop.Path) string {
	var b strings.Builder
	b.WriteString(TagPath)
	for _, p := range path {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.X, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Y, 'f', -1, 64))
	}
	return b.String()
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i+1, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("field %d: non-finite value %q", i+1, f)
		}
		out[i] = v
	}
	return out, nil
}

func arity(tag string, want, got int) error {
	return fmt.Errorf("%w: %s takes %d values, got %d", ErrMalformed, tag, want, got)
}
