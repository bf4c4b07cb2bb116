package game

import (
	"math"
	"math/rand/v2"
)

// Ball is the puck position and velocity. Velocity is expressed in court units per
// nominal step; Match.Step scales it by elapsed wall-clock time.
type Ball struct {
	X  float64
	Y  float64
	VX float64
	VY float64
}

// serve recenters the ball with a random horizontal direction and a
// downward-biased vertical speed in [0, ServeMaxVY).
func (b *Ball) serve(rng *rand.Rand) {
	b.X = CourtWidth / 2
	b.Y = CourtHeight / 2
	b.VX = ServeSpeedX
	if rng.IntN(2) == 0 {
		b.VX = -ServeSpeedX
	}
	b.VY = ServeMaxVY * rng.Float64()
}

// advance moves the ball by its velocity scaled to the elapsed seconds.
func (b *Ball) advance(elapsed float64) {
	b.X += b.VX * elapsed * UnitsPerSecond
	b.Y += b.VY * elapsed * UnitsPerSecond
}

// bounceWalls reflects the ball off the top and bottom walls and pulls it back
// inside the court so a long frame cannot leave it stuck past a wall.
func (b *Ball) bounceWalls() bool {
	switch {
	case b.Y <= 0:
		b.Y = 0
		b.VY = math.Abs(b.VY)
		return true
	case b.Y >= CourtHeight:
		b.Y = CourtHeight
		b.VY = -math.Abs(b.VY)
		return true
	}
	return false
}

// deflect sends the ball back toward the opponent, faster, with a vertical speed
// proportional to where it struck the paddle. dir is +1 (to the right) or -1.
func (b *Ball) deflect(paddleY float64, dir float64) {
	b.VX = dir * math.Abs(b.VX) * SpeedUp
	hit := (b.Y - paddleY) / PaddleHeight
	b.VY = (hit - 0.5) * DeflectScale
}
