// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ai

import (
	"bytes"
	"text/template"
)

// drugPromptTmpl asks for the English INN, a short description of the drug's
// role for the disease, and the model's own evidence-level estimate.
var drugPromptTmpl = template.Must(template.New("drug").Parse(`Проанализируй следующий препарат в контексте заболевания "{{.DiseaseContext}}".

Препарат: {{.ProtocolName}}
Способ применения: {{.UsageText}}

Верни результат в виде ОДНОГО JSON-объекта со следующей структурой:
{"inn_english": "...", "brief_description": "...", "system_loe": "..."}

Пояснения к полям:
- inn_english: Международное непатентованное наименование (МНН) на английском языке.
- brief_description: Очень краткое (1-2 предложения) описание роли этого препарата в лечении указанного заболевания.
- system_loe: Твоя оценка уровня доказательности препарата для данного показания (например, "Класс I (A)", "Класс IIb (B)"), основанная на твоих общих знаниях.

Не добавляй никакого текста вне JSON-объекта.
`))

// contextPromptTmpl asks for the disease a protocol is about.
var contextPromptTmpl = template.Must(template.New("context").Parse(`Проанализируй следующий текст клинического протокола и определи основное заболевание или клинический контекст, описанный в протоколе.

Верни результат в виде ОДНОГО JSON-объекта со следующей структурой:
{"disease_context": "..."}

Не добавляй никакого текста вне JSON-объекта.

Вот текст для анализа:
---
{{.Text}}
---
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
