package round

// Percentile is the share of population strictly below score, rounded to 0-100.
// An empty population yields 0.
func Percentile(score int, population []int) int {
	if len(population) == 0 {
		return 0
	}
	below := 0
	for _, s := range population {
		if s < score {
			below++
		}
	}
	return int(roundHalfUp(float64(below) / float64(len(population)) * 100))
}

var stanineCuts = [...]int{96, 89, 77, 60, 40, 23, 11, 4}

// Stanine bands a percentile into 1-9.
func Stanine(percentile int) int {
	for i, cut := range stanineCuts {
		if percentile >= cut {
			return 9 - i
		}
	}
	return 1
}
