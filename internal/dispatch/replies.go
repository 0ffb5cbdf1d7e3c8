package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/sushef/core/telegram/format"
	"github.com/m3rciful/sushef/internal/session"
)

// Button is an inline control attached to a reply.
type Button struct {
	Label string
	Key   string
}

// Reply is one outgoing message.
type Reply struct {
	Text    string
	Buttons []Button
	// Markdown selects Telegram Markdown (v1) parsing.
	Markdown bool
	// Progress marks a notice sent before a slow backend call; it must be
	// delivered before the call starts.
	Progress bool
}

var (
	resetButton = Button{Label: "❌ Сбросить команду", Key: CallbackReset}
	clearButton = Button{Label: "Очистить таблицу", Key: CallbackClearTable}
)

const (
	textGreeting = "Привет! 👋\n\nЯ помогу вести учёт накладных.\n\nВыбери команду:\n/supply - добавить накладную\n/dashboard - найти данные"

	textSupplyIntro = `📸 Можно отправить:

• Фото накладной (чем лучше качество, тем лучше результат)
• PDF файл
• Обычный текст

В таблицу записывается:
Имя поставщика, дата прихода, товар, цена за единицу, вес товара.

Можно прописывать простым языком.`

	textDashboardIntro = `📋 Примеры запросов:

🗓 По дате:
"Дай все за 27 января"
"Покажи вчера"

🏢 По поставщику:
"Все от ТОО Океан"

📦 По продукту:
"Креветки"

🔄 Комбинации:
"Креветки от Океан за 27 января"`

	textResetConfirm  = "Команда сброшена. Выберите новую команду."
	textChooseCommand = "Выберите команду в меню:\n\n/supply - добавить накладную\n/dashboard - найти данные"
	textCompressHint  = "📸 Изображение отправлено как файл. Нажми кнопку \"Сжать фотографию\" перед отправкой."
	textWrongMode     = "⚠️ Вы находитесь в режиме \"%s\".\n\nДля загрузки накладных введи /supply"

	textProgressPhoto  = "⏳ Обрабатываю накладную..."
	textProgressPDF    = "⏳ Обрабатываю PDF..."
	textProgressText   = "⏳ Обрабатываю данные..."
	textProgressSearch = "⏳ Ищу данные..."

	textInvoiceAdded  = "✅ Товар добавлен!"
	textInvoiceFailed = "❌ Ошибка обработки. Попробуй ещё раз."
	textSearchReady   = "✅ Dashboard готов\n\nСсылка: %s"
	textSearchFailed  = "❌ Ошибка поиска. Попробуй ещё раз."
	textCleared       = "🗑 Таблица очищена"
	textClearFailed   = "❌ Ошибка очистки таблицы"

	textInspectUsage    = "Использование: /state <user_id>"
	textInspectNotFound = "Сессия пользователя %d не найдена, режим по умолчанию: idle"
	textInspectFailed   = "❌ Не удалось прочитать сессию"
)

func plain(text string, buttons ...Button) Reply {
	return Reply{Text: text, Buttons: buttons}
}

func progress(text string) Reply {
	return Reply{Text: text, Progress: true}
}

func wrongModeReply(mode session.Mode) Reply {
	return plain(fmt.Sprintf(textWrongMode, mode))
}

func searchReadyReply(dashboardURL string) Reply {
	return plain(fmt.Sprintf(textSearchReady, dashboardURL), clearButton)
}

// inspectReply renders a stored session for the admin command.
func inspectReply(s session.Session) Reply {
	lines := []string{
		"*Сессия*",
		field("user_id", fmt.Sprint(s.UserID)),
		field("current_state", string(s.Mode)),
		field("context", string(s.Context)),
		field("updated_at", s.UpdatedAt.UTC().Format(time.RFC3339)),
	}
	return Reply{Text: strings.Join(lines, "\n"), Markdown: true}
}

func field(name, value string) string {
	name, _ = format.EscapeMarkdown(name, format.MarkdownV1)
	value, _ = format.EscapeMarkdown(value, format.MarkdownV1)
	return name + ": " + value
}
