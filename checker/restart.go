package checker

import "github.com/carbide-mc/carbide/settings"

// luby generates the Luby restart sequence 1 1 2 1 1 2 4 ...
type luby struct {
	seq   []int
	index int
}

func (l *luby) next() int {
	for l.index >= len(l.seq) {
		l.push()
	}
	v := l.seq[l.index]
	l.index++
	return v
}

func (l *luby) push() {
	size := len(l.seq)
	k := log2(size + 2)
	if size+2 == 1<<k {
		l.seq = append(l.seq, 1<<(k-1))
	} else {
		l.seq = append(l.seq, l.seq[size-(1<<k)+1])
	}
}

func log2(n int) int {
	p := 0
	for n > 1 {
		n >>= 1
		p++
	}
	return p
}

// Restart trips after a configured number of recorded unsat cores,
// growing the threshold geometrically or along the Luby sequence.
type Restart struct {
	useLuby       bool
	threshold     float64
	baseThreshold int
	growthRate    float64
	ucCount       int
	luby          luby
}

// NewRestart configures the restart policy from the run settings.
func NewRestart(cfg settings.Settings) *Restart {
	return &Restart{
		useLuby:       cfg.Luby,
		threshold:     float64(cfg.RestartThreshold),
		baseThreshold: cfg.RestartThreshold,
		growthRate:    cfg.RestartGrowthRate,
	}
}

// Check reports whether the core budget of this round is exhausted.
func (r *Restart) Check() bool { return float64(r.ucCount) > r.threshold }

// Bump counts one recorded core.
func (r *Restart) Bump() { r.ucCount++ }

// Next resets the counter and advances the threshold schedule.
func (r *Restart) Next() {
	r.ucCount = 0
	if r.useLuby {
		r.threshold = float64(r.luby.next() * r.baseThreshold)
	} else {
		r.threshold *= r.growthRate
	}
}
