package notify

import (
	"fmt"

	"github.com/m3rciful/lifeweeks/internal/lifespan"
)

// Greeting is the daily morning message.
const Greeting = "☀️ Доброе утро! Желаю вам хорошего дня и продуктивного начала!"

// StatsMessage renders the weekly statistics message.
func StatsMessage(s lifespan.Stats) string {
	return fmt.Sprintf("📊 Ваша статистика:\n"+
		"• Недель прожито: %d\n"+
		"• Примерно осталось: %d недель\n"+
		"• Ожидаемая продолжительность жизни: %d лет",
		s.WeeksLived, s.WeeksLeft, s.ExpectancyYears)
}
