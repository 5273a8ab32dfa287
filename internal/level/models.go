package level

// Tier selects a completion backend class.
type Tier int

const (
	// TierFast is the cheap, low-latency model.
	TierFast Tier = iota
	// TierCapable is the higher-capability model used by the harder personas.
	TierCapable
)

// String returns the tier name used in logs and metrics.
func (t Tier) String() string {
	if t == TierCapable {
		return "capable"
	}
	return "fast"
}

// modelTiers maps level number to model tier.
var modelTiers = map[int]Tier{
	1:  TierFast,
	2:  TierFast,
	3:  TierCapable,
	4:  TierFast,
	5:  TierCapable,
	6:  TierCapable,
	7:  TierFast,
	8:  TierCapable,
	9:  TierCapable,
	10: TierCapable,
}

// TierFor returns the model tier for level n, TierFast when unrecognized.
func TierFor(n int) Tier {
	if t, ok := modelTiers[n]; ok {
		return t
	}
	return TierFast
}

// Models names the concrete model behind each tier.
type Models struct {
	Fast    string
	Capable string
}

// For returns the model name configured for level n.
func (m Models) For(n int) string {
	if TierFor(n) == TierCapable {
		return m.Capable
	}
	return m.Fast
}
