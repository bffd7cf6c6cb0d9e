package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var fieldLabels = map[string]string{
	FieldModel:     "модель",
	FieldBrand:     "бренд",
	FieldSeries:    "линейка",
	FieldCondition: "состояние",
}

var groupQuestions = map[string]string{
	FieldBrand:     "Какой бренд интересует?",
	FieldSeries:    "Какая линейка интересует?",
	FieldCondition: "Какое состояние рассматриваете?",
}

func renderGroups(field string, groups []group, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "У нас есть %d моделей:\n", total)
	for _, g := range groups {
		fmt.Fprintf(&b, "- %s (%d)\n", g.name, g.count)
	}
	b.WriteString(groupQuestions[field])
	return b.String()
}

func renderListing(candidates []candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c.name)
	}
	b.WriteString("Напишите номера моделей, которые интересны.")
	return b.String()
}

func renderSelection(schema Schema, picked []candidate, unknown []int) string {
	var b strings.Builder
	for _, c := range picked {
		b.WriteString(c.name)
		b.WriteString(":")
		for _, part := range []struct{ label, value string }{
			{"цена", c.fields[schema.Price]},
			{"хэшрейт", c.fields[schema.HashRate]},
			{"потребление", c.fields[schema.Power]},
			{"состояние", c.fields[schema.Condition]},
		} {
			if strings.TrimSpace(part.value) == "" {
				continue
			}
			fmt.Fprintf(&b, " %s %s;", part.label, strings.TrimSpace(part.value))
		}
		b.WriteString("\n")
	}
	if len(unknown) > 0 {
		fmt.Fprintf(&b, "%s нет в последнем списке.", numbersPhrase(unknown))
	}
	return strings.TrimSpace(b.String())
}

func renderUnknownOnly(unknown []int, listed int) string {
	if listed == 0 {
		return fmt.Sprintf("%s не нашлось: список моделей ещё не показан. Спросите, какие модели есть в наличии.", numbersPhrase(unknown))
	}
	return fmt.Sprintf("%s нет в последнем списке. Выберите номер от 1 до %d.", numbersPhrase(unknown), listed)
}

func renderNoMatch(filters map[string]string, total int) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		label := fieldLabels[k]
		if label == "" {
			label = k
		}
		parts = append(parts, fmt.Sprintf("%s %s", label, filters[k]))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Подходящих моделей не нашлось. Всего в каталоге %d моделей.", total)
	}
	return fmt.Sprintf("По запросу (%s) моделей нет в наличии. Всего в каталоге %d моделей, можно подобрать другой вариант.",
		strings.Join(parts, ", "), total)
}

func numbersPhrase(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	if len(numbers) == 1 {
		return "Позиции " + parts[0]
	}
	return "Позиций " + strings.Join(parts, ", ")
}
