package game

// Court geometry and serve parameters, in court units.
const (
	CourtWidth  = 800.0
	CourtHeight = 400.0

	PaddleWidth  = 10.0
	PaddleHeight = 60.0
	// PaddleMax is the highest top edge a paddle can sit at.
	PaddleMax = CourtHeight - PaddleHeight
	// PaddleStart is where both paddles begin a match.
	PaddleStart = 170.0

	ServeSpeedX = 5.0
	ServeMaxVY  = 3.0

	// SpeedUp multiplies the horizontal speed on every paddle hit. There is no ceiling.
	SpeedUp = 1.05
	// DeflectScale maps the hit offset on the paddle to the new vertical speed.
	DeflectScale = 8.0

	// UnitsPerSecond converts elapsed seconds into simulation steps (nominal 60 updates/s).
	UnitsPerSecond = 60.0
)

// ClampPaddle bounds a requested paddle position to the court.
func ClampPaddle(y float64) float64 {
	if y < 0 {
		return 0
	}
	if y > PaddleMax {
		return PaddleMax
	}
	return y
}
