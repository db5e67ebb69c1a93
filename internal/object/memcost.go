package object

// Approximate heap footprints used for budget accounting. They only need
// to be stable, not exact.
const (
	memStringHead int64 = 24
	memMapHead    int64 = 32
	memMapEntry   int64 = 24
)

func CostString(s string) int64 {
	return memStringHead + int64(len(s))
}

func CostMap(entries int) int64 {
	if entries < 0 {
		entries = 0
	}
	return memMapHead + int64(entries)*memMapEntry
}

func CostMapEntry() int64 {
	return memMapEntry
}
