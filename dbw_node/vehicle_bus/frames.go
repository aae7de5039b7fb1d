package bus

// Frame and signal names expected in the CAN map.
const (
	FrameDBWEnabled  = "DBW_ENABLED"
	FrameTwistCmd    = "TWIST_CMD"
	FrameVelocity    = "CURRENT_VELOCITY"
	FrameCurrentPose = "CURRENT_POSE"

	FrameThrottleCmd = "THROTTLE_CMD"
	FrameBrakeCmd    = "BRAKE_CMD"
	FrameSteeringCmd = "STEERING_CMD"
	FrameCTEDiag     = "CTE_DIAG"

	SigDBWEnabled      = "dbw_enabled"
	SigLinearVelocity  = "linear_velocity_mps"
	SigAngularVelocity = "angular_velocity_rps"
	SigVelocity        = "velocity_mps"
	SigPoseX           = "x_m"
	SigPoseY           = "y_m"

	SigEnable        = "enable"
	SigPedalCmdType  = "pedal_cmd_type"
	SigPedalCmd      = "pedal_cmd"
	SigSteeringAngle = "steering_wheel_angle_cmd"
	SigCTE           = "cte_m"
)

// rxSignals lists, per inbound frame, the signals the source reads.
var rxSignals = map[string][]string{
	FrameDBWEnabled:  {SigDBWEnabled},
	FrameTwistCmd:    {SigLinearVelocity, SigAngularVelocity},
	FrameVelocity:    {SigVelocity},
	FrameCurrentPose: {SigPoseX, SigPoseY},
}

// txSignals lists, per outbound frame, the signals the publisher writes.
var txSignals = map[string][]string{
	FrameThrottleCmd: {SigEnable, SigPedalCmdType, SigPedalCmd},
	FrameBrakeCmd:    {SigEnable, SigPedalCmdType, SigPedalCmd},
	FrameSteeringCmd: {SigEnable, SigSteeringAngle},
	FrameCTEDiag:     {SigCTE},
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
