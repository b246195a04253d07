package extraction

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
)

// promptData represents the data passed to the prompt templates.
type promptData struct {
	Transcript string
	Intro      string
	Format     string
}

var extractTemplate = template.Must(template.New("extract").Parse(`{{.Intro}}

Расшифровка:
{{.Transcript}}

Создай JSON в формате:
{{.Format}}`))

var classifyTemplate = template.Must(template.New("classify").Parse(`Проанализируй следующую расшифровку аудио и определи её тип.

Типы сообщений:
1. MEETING - собрание/митинг: диалог нескольких людей, обсуждение задач, планов
2. REMINDER - напоминание: короткая фраза с явным будущим действием/датой ("напомни", "завтра", "через час")
3. ARCHIVE - архив: описательная речь о том, что сделано/делается, без явного запроса
4. DIARY - личный дневник: поток мыслей, переживаний, планов ("сегодня было...", "я чувствую...")
5. WORK - работа: наброски по задачам, размышления о проекте, технические идеи, ретро, ревью дня
6. HOME - дом/быт: домашние дела ("купить", "починить", "убрать", "сделать с детьми/родителями")
7. STUDY - обучение: конспекты с лекций, курсов, книг, статей
8. IDEAS - идеи/брейншторм: поток идей, стартапы, фичи, сценарии, "надо бы сделать..."
9. HEALTH - здоровье: заметки о самочувствии ("плохо спал", "болит голова", "тренировка")
10. FINANCE - финансы: надиктовка трат и доходов ("потратил столько-то на...", "получил зарплату...")
11. UNKNOWN - ни один из типов выше не подходит

Расшифровка:
{{.Transcript}}

Верни JSON в формате:
{
    "type": "MEETING" | "REMINDER" | "ARCHIVE" | "DIARY" | "WORK" | "HOME" | "STUDY" | "IDEAS" | "HEALTH" | "FINANCE" | "UNKNOWN",
    "confidence": 0.0-1.0,
    "reason": "краткое объяснение"
}`))

const classifySystemPrompt = "Ты помощник для классификации сообщений. Отвечай только валидным JSON."

// categoryPrompt is the category-specific part of an extraction prompt.
type categoryPrompt struct {
	system string
	intro  string
	format string
}

// promptFor returns the prompt parts for c. The switch covers every category;
// unknown has no prompt because it never reaches the model.
func promptFor(c domain.Category) (categoryPrompt, bool) {
	switch c {
	case domain.CategoryMeeting:
		return categoryPrompt{
			system: "Ты помощник для анализа собраний.",
			intro:  "Проанализируй расшифровку собрания и создай структурированный отчёт.",
			format: `{
    "title": "краткий заголовок встречи",
    "summary": "краткое резюме (2-3 предложения)",
    "participants": ["имя1", "имя2"],
    "tasks": [
        {
            "title": "название задачи",
            "assignee": "исполнитель (если известен)",
            "due_date": "срок (если упомянут)",
            "description": "описание"
        }
    ],
    "decisions": ["решение1", "решение2"],
    "key_points": ["важный момент1", "важный момент2"]
}`,
		}, true
	case domain.CategoryReminder:
		return categoryPrompt{
			system: "Ты помощник для обработки напоминаний.",
			intro:  "Проанализируй расшифровку напоминания и извлеки информацию.",
			format: `{
    "text": "текст напоминания",
    "reminder_date": "дата/время если указано явно (YYYY-MM-DD HH:MM или null)",
    "relative_time": "относительное время если указано ('через час', 'завтра' или null)",
    "needs_clarification": true/false
}`,
		}, true
	case domain.CategoryArchive:
		return categoryPrompt{
			system: "Ты помощник для создания структурированных заметок.",
			intro:  "Преобразуй расшифровку в структурированную статью/заметку.",
			format: `{
    "title": "заголовок статьи",
    "summary": "краткое резюме (2-3 предложения)",
    "content": "структурированный текст с подзаголовками и списками (markdown формат)",
    "tags": ["тег1", "тег2"]
}`,
		}, true
	case domain.CategoryDiary:
		return categoryPrompt{
			system: "Ты помощник для ведения личного дневника.",
			intro:  "Преобразуй расшифровку в запись личного дневника.",
			format: `{
    "title": "заголовок записи",
    "summary": "краткое резюме (2-3 предложения)",
    "content": "полный текст записи",
    "thoughts": ["мысль1", "мысль2"],
    "emotions": ["эмоция1", "эмоция2"]
}`,
		}, true
	case domain.CategoryWork:
		return categoryPrompt{
			system: "Ты помощник для ведения рабочих заметок.",
			intro:  "Преобразуй расшифровку в рабочую заметку.",
			format: `{
    "title": "заголовок заметки",
    "project_context": "контекст проекта/задачи",
    "done": ["выполненная задача1"],
    "planned": ["запланированная задача1"],
    "problems": ["проблема/риск1"],
    "ideas": ["идея1"]
}`,
		}, true
	case domain.CategoryHome:
		return categoryPrompt{
			system: "Ты помощник для управления бытовыми задачами.",
			intro:  "Извлеки бытовые задачи из расшифровки.",
			format: `{
    "tasks": [
        {
            "category": "покупки" | "ремонт" | "бытовые" | "семейные",
            "title": "название задачи",
            "description": "описание (опционально)"
        }
    ]
}`,
		}, true
	case domain.CategoryStudy:
		return categoryPrompt{
			system: "Ты помощник для создания учебных конспектов.",
			intro:  "Преобразуй расшифровку в структурированный учебный конспект.",
			format: `{
    "topic": "тема конспекта",
    "key_points": ["ключевой тезис1", "ключевой тезис2"],
    "definitions": ["определение1"],
    "examples": ["пример1"],
    "questions": ["вопрос для самопроверки1"],
    "follow_up_tasks": ["задача1 (например, 'разобрать главу 3')"]
}`,
		}, true
	case domain.CategoryIdeas:
		return categoryPrompt{
			system: "Ты помощник для фиксации идей.",
			intro:  "Извлеки идеи из расшифровки брейншторма.",
			format: `{
    "ideas": [
        {
            "title": "название идеи",
            "description": "описание идеи",
            "category": "работа" | "личное" | "проект" | null,
            "next_step": "MVP-шаг или следующий минимальный шаг"
        }
    ]
}`,
		}, true
	case domain.CategoryHealth:
		return categoryPrompt{
			system: "Ты помощник для ведения лога здоровья.",
			intro:  "Извлеки информацию о здоровье из расшифровки.",
			format: `{
    "symptoms": ["симптом1"],
    "actions": ["действие1 (лекарство, тренировка и т.п.)"],
    "triggers": ["возможный триггер1"],
    "notes": "дополнительные заметки"
}`,
		}, true
	case domain.CategoryFinance:
		return categoryPrompt{
			system: "Ты помощник для учёта финансов.",
			intro:  "Извлеки финансовую информацию из расшифровки.",
			format: `{
    "transactions": [
        {
            "amount": число (сумма),
            "category": "доход" | "расход",
            "subcategory": "еда" | "транспорт" | "зарплата" | "развлечения" | "другое",
            "description": "описание операции"
        }
    ]
}`,
		}, true
	case domain.CategoryUnknown:
		return categoryPrompt{}, false
	default:
		return categoryPrompt{}, false
	}
}

// render executes tmpl with data.
func render(tmpl *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}

const jsonOnly = " Отвечай только валидным JSON."
