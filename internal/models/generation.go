package models

import "strings"

// Generation is one supported schema generation of the artifact format.
type Generation struct {
	Column string // store column, e.g. "R4B"
	Prefix string // version prefix, e.g. "4.3"
}

// Generations lists the supported schema generations in store column order.
var Generations = []Generation{
	{Column: "R2", Prefix: "1.0"},
	{Column: "R2B", Prefix: "1.4"},
	{Column: "R3", Prefix: "3.0"},
	{Column: "R4", Prefix: "4.0"},
	{Column: "R4B", Prefix: "4.3"},
	{Column: "R5", Prefix: "5.0"},
	{Column: "R6", Prefix: "6.0"},
}

// Applies reports whether a comma separated version list covers g.
func (g Generation) Applies(versions string) bool {
	return strings.HasPrefix(versions, g.Prefix) || strings.Contains(versions, ","+g.Prefix)
}

// GenerationFlags returns one 0/1 flag per entry of Generations.
func GenerationFlags(versions string) []int {
	flags := make([]int, len(Generations))
	for i, g := range Generations {
		if g.Applies(versions) {
			flags[i] = 1
		}
	}
	return flags
}
