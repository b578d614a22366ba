package ranking

// PercentileLabel describes a percentile as a "Top N%" band.
func PercentileLabel(percentile int) string {
	switch {
	case percentile >= 95:
		return "Top 5%"
	case percentile >= 90:
		return "Top 10%"
	case percentile >= 80:
		return "Top 20%"
	case percentile >= 70:
		return "Top 30%"
	case percentile >= 60:
		return "Top 40%"
	case percentile >= 50:
		return "Top 50%"
	case percentile >= 40:
		return "Top 60%"
	case percentile >= 30:
		return "Top 70%"
	case percentile >= 20:
		return "Top 80%"
	case percentile >= 10:
		return "Top 90%"
	default:
		return "Top 100%"
	}
}

var stanineLabels = [...]string{
	1: "Very Poor",
	2: "Poor",
	3: "Below Average",
	4: "Fair",
	5: "Average",
	6: "Fair",
	7: "Good",
	8: "Excellent",
	9: "Outstanding",
}

// StanineLabel names a stanine band. Out-of-range values are "Unrated".
func StanineLabel(stanine int) string {
	if stanine < 1 || stanine > 9 {
		return "Unrated"
	}
	return stanineLabels[stanine]
}
