package onboarding

import (
	"fmt"
	"strings"

	"github.com/m3rciful/lifeweeks/internal/lifespan"
)

const (
	textStart = "Привет! Я бот 'Календарь жизни'. Давайте начнем!\n" +
		"Пожалуйста, введите вашу дату рождения в формате YYYY-MM-DD."
	textInvalidDate = "Неверный формат даты. Пожалуйста, введите дату в формате YYYY-MM-DD."
	textFailure     = "Извините, не удалось сохранить данные. Попробуйте ещё раз чуть позже."
)

const regionExamples = 3

func textAskRegion(regions []string) string {
	if len(regions) > regionExamples {
		regions = regions[:regionExamples]
	}
	return fmt.Sprintf("Отлично! Теперь укажите ваш регион проживания (например, %s).", strings.Join(regions, ", "))
}

func textUnknownRegion(regions []string) string {
	return fmt.Sprintf("Неизвестный регион. Пожалуйста, выберите из списка: %s.", strings.Join(regions, ", "))
}

func textConfirmed(dob string, region lifespan.Region) string {
	return fmt.Sprintf("Спасибо! Ваша дата рождения: %s, регион: %s.\n"+
		"Вы будете получать уведомления каждую неделю.", dob, region.Name)
}
