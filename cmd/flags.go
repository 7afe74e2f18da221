package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// AddFlagValidation makes the named flag reject values the validator
// refuses, so errors surface while flags are parsed.
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// enumValidator accepts exactly one of allowed, suggesting the closest
// match otherwise.
func enumValidator(allowed []string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		msg := fmt.Sprintf("invalid value '%s', must be one of: %s", value, strings.Join(allowed, ", "))
		if s := closest(value, allowed); s != "" {
			msg += fmt.Sprintf(" (did you mean '%s'?)", s)
		}
		return fmt.Errorf("%s", msg)
	}
}

// closest returns the candidate within edit distance 2 of value, or "".
func closest(value string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := editDistance(strings.ToLower(value), c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
