package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// buildChain walks the product's approval levels in order and resolves one
// approver per applicable level. A level applies when the order amount falls
// within its [MinAmount, MaxAmount) window. Resolution picks the qualifying
// candidate with the lowest sufficient approval authority so large approvals
// are not routed to the most senior user by default; ties break on user ID
// for determinism.
//
// An applicable level that resolves to no qualifying user fails chain
// construction with ErrNoQualifiedApprover rather than silently weakening the
// chain.
func buildChain(ctx context.Context, dir Directory, product Product, amount float64, department string, now time.Time) ([]Approver, error) {
	levels := append([]ApprovalLevel(nil), product.ApprovalLevels...)
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })

	var approvers []Approver
	step := 0
	for _, level := range levels {
		if !levelApplies(level, amount) {
			continue
		}
		scope := ""
		if level.Role == RoleManager {
			scope = department
		}
		candidates, err := dir.ByRole(ctx, level.Role, scope)
		if err != nil {
			return nil, fmt.Errorf("resolve approvers for level %d (%s): %w", level.Level, level.Role, err)
		}
		chosen, ok := pickApprover(candidates, amount)
		if !ok {
			return nil, fmt.Errorf("level %d (%s): %w", level.Level, level.Role, ErrNoQualifiedApprover)
		}
		step++
		timeout := level.TimeoutHours
		if timeout <= 0 {
			timeout = defaultLevelTimeoutHours
		}
		approvers = append(approvers, Approver{
			UserID:        chosen.ID,
			Step:          step,
			ApprovalLimit: chosen.MaxApprovalAmount,
			Status:        ApproverPending,
			Deadline:      now.Add(time.Duration(timeout) * time.Hour),
		})
	}
	return approvers, nil
}

const defaultLevelTimeoutHours = 48

func levelApplies(level ApprovalLevel, amount float64) bool {
	if amount < level.MinAmount {
		return false
	}
	if level.MaxAmount > 0 && amount >= level.MaxAmount {
		return false
	}
	return true
}

func pickApprover(candidates []User, amount float64) (User, bool) {
	qualified := make([]User, 0, len(candidates))
	for _, u := range candidates {
		if u.MaxApprovalAmount >= amount {
			qualified = append(qualified, u)
		}
	}
	if len(qualified) == 0 {
		return User{}, false
	}
	sort.Slice(qualified, func(i, j int) bool {
		if qualified[i].MaxApprovalAmount != qualified[j].MaxApprovalAmount {
			return qualified[i].MaxApprovalAmount < qualified[j].MaxApprovalAmount
		}
		return qualified[i].ID < qualified[j].ID
	})
	return qualified[0], true
}

// pendingStatusForStep maps the active step to the order status surfaced to
// users. Chains longer than two steps stay in under_review past step two.
func pendingStatusForStep(step int) OrderStatus {
	switch step {
	case 1:
		return StatusPendingL1
	case 2:
		return StatusPendingL2
	default:
		return StatusUnderReview
	}
}
