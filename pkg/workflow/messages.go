package workflow

import (
	"fmt"

	"tbot/pkg/task"
)

// Activity descriptions and notification texts. Rendering beyond plain
// text belongs to the chat front end.

func ref(t *task.Task) string {
	return fmt.Sprintf("#%d «%s»", t.ID, t.Title)
}

func textCreated(t *task.Task, author string) string {
	return fmt.Sprintf("Новая задача %s от %s", ref(t), author)
}

func textTaken(t *task.Task, actor string) string {
	return fmt.Sprintf("%s взял(а) в работу задачу %s", actor, ref(t))
}

func textDelegated(t *task.Task, actor, responsible string) string {
	return fmt.Sprintf("%s передал(а) задачу %s в работу ответственному: %s", actor, ref(t), responsible)
}

func textPaused(t *task.Task, actor string) string {
	return fmt.Sprintf("%s поставил(а) на паузу задачу %s", actor, ref(t))
}

func textDone(t *task.Task, actor string) string {
	return fmt.Sprintf("%s выполнил(а) свою часть задачи %s, нужно подтверждение", actor, ref(t))
}

func textConfirmed(t *task.Task, actor, participant string) string {
	return fmt.Sprintf("%s подтвердил(а) выполнение задачи %s участником %s", actor, ref(t), participant)
}

func textRejected(t *task.Task, actor, participant string) string {
	return fmt.Sprintf("%s вернул(а) задачу %s на доработку участнику %s", actor, ref(t), participant)
}

func textCompleted(t *task.Task) string {
	return fmt.Sprintf("Задача %s завершена", ref(t))
}

func textReopened(t *task.Task, actor string) string {
	return fmt.Sprintf("%s вернул(а) в работу задачу %s", actor, ref(t))
}

func textPostponed(t *task.Task, actor, due string) string {
	return fmt.Sprintf("%s изменил(а) срок задачи %s: %s", actor, ref(t), due)
}

func textReminder(t *task.Task, actor string) string {
	return fmt.Sprintf("Напоминание от %s по задаче %s", actor, ref(t))
}

func textOverdue(t *task.Task) string {
	return fmt.Sprintf("Задача %s просрочена", ref(t))
}

func textDeleted(t *task.Task, actor string) string {
	return fmt.Sprintf("%s удалил(а) задачу %s", actor, ref(t))
}
