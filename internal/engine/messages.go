package engine

var momentumMessages = []string{
	"A small step now beats a big plan later. Want a task?",
	"It has been quiet for a while. Ready to pick something up?",
	"Momentum fades fast. One quick task to get back in?",
	"Got a few minutes? There is probably something light waiting.",
	"No pressure, but the next task is one keypress away.",
}

var completionMessages = []string{
	"Nice, that one is done. Keep the streak or take a breather.",
	"Done and dusted. Want the next one while you are warm?",
	"One more off the list. Good pace today.",
}

func pickMessage(rng Rand, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	idx := int(rng.Float64() * float64(len(pool)))
	if idx >= len(pool) {
		idx = len(pool) - 1
	}
	return pool[idx]
}
