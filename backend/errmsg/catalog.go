package errmsg

// English and Russian text per "<domain>.<code>" key.
var catalogEntries = map[string][2]string{
	"topics.1": {"Topic does not exist", "Передан несуществующий идентификатор темы"},
	"topics.2": {"Invalid title length", "Неверная длина заголовка темы"},
	"topics.3": {"Invalid question length", "Неверная длина вопроса"},
	"topics.4": {"Invalid image", "Неверное изображение"},
	"topics.5": {"Forum section does not exist", "Несуществующий раздел форума"},

	"comments.1": {"Invalid comment length", "Неверная длина комментария"},
	"comments.2": {"Invalid image", "Неверное изображение"},

	"ratings.1": {"You cannot review yourself", "Нельзя оценить самого себя"},
	"ratings.2": {"User not found", "Пользователь не найден"},
	"ratings.3": {"Review has not changed", "Отзыв не изменился"},
	"ratings.4": {"There is no review to drop", "Отзыв отсутствует"},

	"settings.1": {"Invalid avatar", "Неверная аватарка"},
	"settings.2": {"Invalid signature", "Неверная подпись"},
	"settings.3": {"Invalid timezone", "Неверный часовой пояс"},

	"auth.1": {"Invalid username or password", "Неверное имя пользователя или пароль"},
	"auth.2": {"Username must be 5 to 25 characters and not only digits", "Имя пользователя должно быть 5<=длина имени<=25 и не состоять только из цифр"},
	"auth.3": {"Password must be 8 to 64 characters", "Пароль должен быть 8<=длина пароля<=64"},
	"auth.4": {"Passwords do not match", "Пароли не совпадают"},
	"auth.5": {"Username is already taken", "Имя пользователя уже занято"},
}
