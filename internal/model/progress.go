package model

import "math"

// Progress is a done/total pair reported by stage progress queries.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Fraction returns Done/Total in [0,1]; an empty population is 0.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Done) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Percent returns the fraction as a percentage rounded to one decimal.
func (p Progress) Percent() float64 {
	return math.Round(p.Fraction()*1000) / 10
}
