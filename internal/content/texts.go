package content

// Dialogue texts sent to recipients.
const (
	AnnouncementPrefix = "У тебя появилась новая ведомость на согласование 📋\n\n"

	TextGreeting        = "Я бот по согласованию выплат. Нажмите кнопку 'К списку выплат' или дождитесь уведомления о выплате."
	TextNoPayments      = "У Вас нет выплат."
	TextAlreadyAgreed   = "Вы уже согласовали ведомость!"
	TextNotFound        = "Ведомость не найдена (возможно устарела)."
	TextBadIndex        = "Ведомость не найдена (неверный номер)."
	TextOpenFirst       = "Сначала откройте ведомость из списка выплат."
	TextSelectPoint     = "С каким пунктом вы не согласны:"
	TextConfirmAgree    = "Вы точно согласны с ведомостью?"
	TextOperatorFollow  = "С Вами свяжется оператор."
	TextDataMismatch    = "С Вами свяжется оператор. Пожалуйста, напишите в сообщении ниже корректные данные."
	TextProPending      = "Прими приглашение в Консоль ПРО, затем повторно подтвердите выплату."
	TextOperatorHandoff = "Сообщение передано оператору. Он скоро свяжется с Вами. Опишите, пожалуйста, Вашу проблему в сообщении ниже."
	TextTutorDisagree   = "В сообщении ниже опишите причину несогласия. В течение n количества времени с Вами свяжется оператор."
	TextActionFailed    = "Не удалось обработать действие. С Вами свяжется оператор."
	TextActionAccepted  = "Действие принято"
	TextNoExplanation   = "По этому пункту нет автоматического пояснения."

	TextContractPrompt = "Подписан ли у Вас договор в приложении Консоль Про? Краткая справка, как проверить: Консоль Про ->  раздел компании. " +
		"Если там есть компания ООО '100балльный репетитор', то договор подписан. "
	TextAgreed = "Вы согласовали выплату. Спасибо! В течение 10 дней в приложении Консоль Вам придет акт, который необходимо подписать. " +
		"После этого в течение n количества времени на реквизиты Вашего банковского счета придет выплата."

	TextListFirst = "Список ведомостей (выберите):"
	TextListPart  = "Список ведомостей (часть %d):"
	TextListPage  = "Список ведомостей (страница %d):"
)

const (
	statementTitle = "=== Согласование выплаты ==="
	statementHint  = "Нажмите «Согласен», если у Вас нет разногласий с выставленными цифрами\n" +
		"Нажмите «Не согласен», если Вы не согласны с каким-либо из пунктов"
	viewingNotice = "Просмотр ведомости возможен в течение %d часов"
)

const (
	explainStudents = "Количество учеников взято из журнала оплат с последних продлений (листы «Статистика по группам», «Статистика по кураторам»). " +
		"Результат просуммирован за все группы" +
		"\n\nЕсли ученик записался на сразу 2-й блок и не занимался в 1-м, оплата за его сопровождение в 1-м блоке не последует"
	explainHomework = "Оплата за ДЗ считается как общая сумма за проверенные номера за всё время минус ранее оплаченные работы. " +
		"Годовые и полугодовые курсы разделяются в вопросе расчета выплаты"
	explainHomeworkNumbers = "\n\nОбщая сумма твоих проверок за всё время на аккаунте: %d" +
		"\nОбщая сумма твоих проверок на момент предыдущей выплаты: %d" +
		"\nТаким образом, в эту выплату пойдёт: %d - %d = %d" +
		"\n\nЕсли в какой-либо выгрузке ты видишь, что итоговая сумма уже больше, чем сейчас, то эта разница пойдет в следующую выплату"
	explainHomeworkNoData = "\n\nЕсли конкретные цифры недоступны, сверка по CSV будет выполнена оператором."
	explainFines          = "Штрафы выставляются старшими кураторами курса. Если ты не осведомлен(-а) о каком-либо вычете, уточни об этом у старшего куратора" +
		"\nМы можем откорректировать сумму штрафа в выплате, если запрос на это передаст старший куратор"
	explainMeth = "Оплата за стол заказов выставляется методистом предмета, по вопросам расчёта выплаты обращайся к нему" +
		"\nМы можем откорректировать сумму за стол заказов в выплате, если запрос на это передаст методист"
	explainWebs = "Сумму за вебы можно отследить в течение блока, тк вы самостоятельно заполняете отчетность по ним." +
		"\nЕсли ты не заполнил(-а) все вебы за этот блок, то можешь их добавить в следующий. Данные за этот блок уже считаны, их не исправить"
	explainUP = "Оплату УП выставляет руководитель УП, уточни, пожалуйста, у него этот момент" +
		"\nМы можем откорректировать сумму за УП в выплате, если запрос на это передаст руководитель УП"
	explainDops = "Дополнительные выплаты (проверки, перепроверки) рассчитывает и выставляет старший куратор, уточни, пожалуйста, у него этот момент" +
		"\nМы можем откорректировать сумму допов в выплате, если запрос на это передаст старший куратор"
	explainRetentionGeneric = "Данные по retention rate взяты из журнала оплат за предыдущий блок (например, если мы считаем выплату за 2-й блок, то берём RR с 1 на 2 блок." +
		"\nВсе причины слива одинаково учитываются в Retention Rate. Если произошло обстоятельство непреодолимой силы (например, ученик погиб), " +
		"ты можешь обратиться к СК для корректировки RR, но только в таких случаях"
)
