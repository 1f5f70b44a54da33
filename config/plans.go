package config

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Unlimited đánh dấu một giới hạn không bị chặn
const Unlimited = -1

//go:embed plans.yaml
var plansYAML []byte

type PlanLimits struct {
	Plan              string `yaml:"-" json:"plan"`
	MaxCompanions     int    `yaml:"max_companions" json:"max_companions"`
	MonthlyCompanions int    `yaml:"monthly_companions" json:"monthly_companions"`
	MaxSessionMinutes int    `yaml:"max_session_minutes" json:"max_session_minutes"`
}

type FeatureOverride struct {
	MaxCompanions     *int `yaml:"max_companions"`
	MonthlyCompanions *int `yaml:"monthly_companions"`
	MaxSessionMinutes *int `yaml:"max_session_minutes"`
}

type PlanTable struct {
	Version     int                        `yaml:"version"`
	DefaultPlan string                     `yaml:"default_plan"`
	Aliases     map[string]string          `yaml:"aliases"`
	Plans       map[string]PlanLimits      `yaml:"plans"`
	Features    map[string]FeatureOverride `yaml:"features"`
}

// LoadPlanTable đọc bảng giới hạn được nhúng lúc biên dịch
func LoadPlanTable() (*PlanTable, error) {
	return ParsePlanTable(plansYAML)
}

func ParsePlanTable(data []byte) (*PlanTable, error) {
	var table PlanTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse plan table: %w", err)
	}
	if len(table.Plans) == 0 {
		return nil, fmt.Errorf("plan table v%d has no plans", table.Version)
	}
	if _, ok := table.Plans[table.DefaultPlan]; !ok {
		return nil, fmt.Errorf("plan table v%d: default plan %q is not defined", table.Version, table.DefaultPlan)
	}
	for alias, target := range table.Aliases {
		if _, ok := table.Plans[target]; !ok {
			return nil, fmt.Errorf("plan table v%d: alias %q points to unknown plan %q", table.Version, alias, target)
		}
	}
	for name, limits := range table.Plans {
		if limits.MaxSessionMinutes < 1 && limits.MaxSessionMinutes != Unlimited {
			return nil, fmt.Errorf("plan table v%d: plan %q needs max_session_minutes", table.Version, name)
		}
	}
	return &table, nil
}

// Resolve trả về giới hạn hiệu lực cho một gói và tập feature flag.
// Gói không xác định rơi về default_plan. Với nhiều feature cùng khoá,
// giá trị rộng nhất thắng; feature không bao giờ siết chặt một giới hạn Unlimited.
func (t *PlanTable) Resolve(plan string, features []string) PlanLimits {
	name := strings.ToLower(strings.TrimSpace(plan))
	if target, ok := t.Aliases[name]; ok {
		name = target
	}
	limits, ok := t.Plans[name]
	if !ok {
		name = t.DefaultPlan
		limits = t.Plans[name]
	}
	limits.Plan = name

	var maxCompanions, monthly, minutes []int
	for _, f := range features {
		override, ok := t.Features[f]
		if !ok {
			continue
		}
		if override.MaxCompanions != nil {
			maxCompanions = append(maxCompanions, *override.MaxCompanions)
		}
		if override.MonthlyCompanions != nil {
			monthly = append(monthly, *override.MonthlyCompanions)
		}
		if override.MaxSessionMinutes != nil {
			minutes = append(minutes, *override.MaxSessionMinutes)
		}
	}
	limits.MaxCompanions = applyOverride(limits.MaxCompanions, maxCompanions)
	limits.MonthlyCompanions = applyOverride(limits.MonthlyCompanions, monthly)
	limits.MaxSessionMinutes = applyOverride(limits.MaxSessionMinutes, minutes)
	return limits
}

func applyOverride(base int, overrides []int) int {
	if base == Unlimited || len(overrides) == 0 {
		return base
	}
	best := overrides[0]
	for _, v := range overrides[1:] {
		if best != Unlimited && (v == Unlimited || v > best) {
			best = v
		}
	}
	return best
}

// Allows cho biết count hiện tại còn dưới giới hạn hay không
func Allows(limit int, count int64) bool {
	if limit == Unlimited {
		return true
	}
	return count < int64(limit)
}
