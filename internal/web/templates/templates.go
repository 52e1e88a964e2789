package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"hotel-ops-backend/internal/domain"
)

// DashboardData - данные главной страницы
type DashboardData struct {
	HotelID      string
	Integrations []*domain.Integration
	Connections  int
	Guests       int
}

// ActiveCount - число активных интеграций
func (d DashboardData) ActiveCount() int {
	n := 0
	for _, in := range d.Integrations {
		if in.IsActive() {
			n++
		}
	}
	return n
}

// Base оборачивает содержимое страницы в общий каркас
func Base(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="ru"><head><meta charset="utf-8"><title>%s</title>`+
			`</head><body><main>`, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// Dashboard - сводка интеграций отеля и подключенных гостей
func Dashboard(data DashboardData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<h1>Интеграции отеля %s</h1>`, templ.EscapeString(data.HotelID))
		fmt.Fprintf(w, `<section class="stats"><div>Всего: <b>%d</b></div><div>Активных: <b>%d</b></div>`+
			`<div>Сокетов: <b>%d</b></div><div>Гостей онлайн: <b>%d</b></div></section>`,
			len(data.Integrations), data.ActiveCount(), data.Connections, data.Guests)

		if len(data.Integrations) == 0 {
			_, err := io.WriteString(w, `<p class="empty">Интеграций пока нет</p>`)
			return err
		}

		io.WriteString(w, `<table><thead><tr><th>Название</th><th>Категория</th><th>Провайдер</th>`+
			`<th>Статус</th><th>Синхронизация</th><th>Ошибок</th><th></th></tr></thead><tbody>`)
		for _, in := range data.Integrations {
			fmt.Fprintf(w, `<tr class="status-%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td>`+
				`<td><a href="/integrations/%s/logs">журнал</a></td></tr>`,
				templ.EscapeString(in.Status),
				templ.EscapeString(in.Name),
				templ.EscapeString(in.Category),
				templ.EscapeString(in.Provider),
				templ.EscapeString(in.Status),
				templ.EscapeString(syncLabel(in)),
				in.ErrorCount,
				templ.EscapeString(in.ID),
			)
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
	return Base("Hotel Ops", body)
}

// IntegrationLogs - последние записи журнала интеграции
func IntegrationLogs(in *domain.Integration, logs []*domain.IntegrationLog, total int, stats *domain.LogStats) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<h1>%s</h1><p>%s / %s, записей: %d</p><a href="/">назад</a>`,
			templ.EscapeString(in.Name), templ.EscapeString(in.Category), templ.EscapeString(in.Provider), total)
		fmt.Fprintf(w, `<section class="stats"><div>Успешно: <b>%d</b></div><div>С ошибкой: <b>%d</b></div>`+
			`<div>Частично: <b>%d</b></div><div>Среднее время: <b>%.0f мс</b></div></section>`,
			stats.Success, stats.Failed, stats.Partial, stats.AvgProcessingMS)

		io.WriteString(w, `<table><thead><tr><th>Время</th><th>Тип</th><th>Операция</th><th>Статус</th>`+
			`<th>мс</th><th>Записи</th><th>Ошибка</th></tr></thead><tbody>`)
		for _, l := range logs {
			fmt.Fprintf(w, `<tr class="status-%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d/%d</td><td>%s</td></tr>`,
				templ.EscapeString(l.Status),
				l.CreatedAt.Format(time.DateTime),
				templ.EscapeString(l.OperationType),
				templ.EscapeString(l.OperationName),
				templ.EscapeString(l.Status),
				l.ProcessingTimeMS,
				l.RecordsSuccess, l.RecordsProcessed,
				templ.EscapeString(l.ErrorMessage),
			)
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
	return Base(in.Name, body)
}

func syncLabel(in *domain.Integration) string {
	if in.LastSyncAt == nil {
		return "никогда"
	}
	return in.LastSyncAt.Format(time.DateTime) + " (" + in.LastSyncStatus + ")"
}
