//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package concurrency

import (
	"context"
	"runtime"
)

type budgetKey struct{}

func (budgetKey) String() string {
	return "concurrency_budget"
}

// CtxWithBudget limits how many tasks a batch engine may run at once for
// jobs submitted with ctx.
func CtxWithBudget(ctx context.Context, budget int) context.Context {
	return context.WithValue(ctx, budgetKey{}, budget)
}

func BudgetFromCtx(ctx context.Context, fallback int) int {
	budget, ok := ctx.Value(budgetKey{}).(int)
	if !ok || budget < 1 {
		return fallback
	}

	return budget
}

// DefaultBudget is one task per available CPU.
func DefaultBudget() int {
	return runtime.GOMAXPROCS(0)
}
