package dynamo

// Snapshot is the immutable per-tick record published by the simulation
// loop. It is always passed by value; readers never see a live reference
// into the loop's state.
type Snapshot struct {
	Timestamp       float64 `json:"timestamp"`
	ArmAngle        float64 `json:"arm_angle"`
	ArmVelocity     float64 `json:"arm_velocity"`
	PendulumAngle   float64 `json:"pendulum_angle"`
	PendulumVeloc   float64 `json:"pendulum_velocity"`
	MotorTorque     float64 `json:"motor_torque"`
	EncoderRaw      int     `json:"encoder_raw"`
	EncoderAngle    float64 `json:"encoder_angle"`
	EncoderDegrees  float64 `json:"encoder_degrees"`
	EncoderPosition float64 `json:"encoder_position"`
	PIDOutput       float64 `json:"pid_output"`
	PIDError        float64 `json:"pid_error"`
	TargetAngle     float64 `json:"target_angle"`
	ControlEnabled  bool    `json:"control_enabled"`
}
