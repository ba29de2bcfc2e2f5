package app

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"budget-meal-planner/internal/budget"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/recipe"
)

var planTemplate = template.Must(template.New("plan").Funcs(template.FuncMap{
	"title": title,
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"flags": flags,
}).Parse(`<h2>Budget</h2>
<p>Weekly budget {{money .Result.Budget}}, planned cost {{money .Result.FinalCost}}{{if .Result.WithinBudget}} (within budget){{else}} ({{money .Result.Remaining}} over){{end}}.</p>
{{range .Days}}<h3>{{title .Name}}</h3>
<ul>
{{range .Meals}}<li><strong>{{title .Type}}</strong>: {{.Meal.Name}} ({{money .Meal.CostPerServing}}){{with flags .Meal}} <em>{{.}}</em>{{end}}</li>
{{end}}</ul>
{{end}}`))

type dayView struct {
	Name  string
	Meals []mealView
}

type mealView struct {
	Type string
	Meal *planner.Meal
}

func days(plan *planner.MealPlan) []dayView {
	var out []dayView
	for _, day := range planner.Days {
		dv := dayView{Name: day}
		for _, mt := range []recipe.MealType{recipe.Breakfast, recipe.Lunch, recipe.Dinner, recipe.Snack} {
			if m := plan.Meal(day, mt); m != nil {
				dv.Meals = append(dv.Meals, mealView{Type: string(mt), Meal: m})
			}
		}
		if len(dv.Meals) > 0 {
			out = append(out, dv)
		}
	}
	return out
}

// RenderPlanHTML renders a plan as the HTML body of a Ghost post.
func RenderPlanHTML(plan *planner.MealPlan, res *budget.Result) (string, error) {
	var buf bytes.Buffer
	err := planTemplate.Execute(&buf, struct {
		Days   []dayView
		Result *budget.Result
	}{days(plan), res})
	if err != nil {
		return "", fmt.Errorf("failed to render meal plan: %w", err)
	}
	return buf.String(), nil
}

// FormatPlan renders a plan as plain text for chat and terminal output.
func FormatPlan(plan *planner.MealPlan, res *budget.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Week of %s\n", plan.WeekStart.Format("2006-01-02"))
	for _, dv := range days(plan) {
		fmt.Fprintf(&sb, "\n%s\n", title(dv.Name))
		for _, mv := range dv.Meals {
			fmt.Fprintf(&sb, "  %-9s %s (%.2f)", title(mv.Type), mv.Meal.Name, mv.Meal.CostPerServing)
			if f := flags(mv.Meal); f != "" {
				fmt.Fprintf(&sb, " [%s]", f)
			}
			sb.WriteString("\n")
		}
	}

	if res != nil {
		fmt.Fprintf(&sb, "\nBudget: %.2f\nCost: %.2f (was %.2f)\n", res.Budget, res.FinalCost, res.InitialCost)
		if res.WithinBudget {
			sb.WriteString("Within budget\n")
		} else {
			fmt.Fprintf(&sb, "Over budget by %.2f\n", res.Remaining)
		}
		if saved := res.Savings(); saved > 0 {
			fmt.Fprintf(&sb, "Saved: %.2f\n", saved)
		}
		if res.ProjectedCost > 0 {
			fmt.Fprintf(&sb, "Projected with season and inflation: %.2f\n", res.ProjectedCost)
		}
	}
	return sb.String()
}

// flags lists the optimizations applied to a meal.
func flags(m *planner.Meal) string {
	var out []string
	if m.Substituted {
		out = append(out, "substituted")
	}
	if m.Simplified {
		out = append(out, "simplified")
	}
	if m.LeftoverBased {
		label := "leftovers"
		if m.OriginalMeal != "" {
			label += " of " + m.OriginalMeal
		}
		out = append(out, label)
	}
	if m.PortionOptimized {
		out = append(out, "portion adjusted")
	}
	return strings.Join(out, ", ")
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
