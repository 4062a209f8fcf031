package apierror

// Codes of the bot platform errors.
const (
	CodeNLPEngineError       = "NLPEngineError"
	CodeBotDoesNotExist      = "BotDoesNotExist"
	CodeBotAlreadyExists     = "BotAlreadyExists"
	CodePlatformNotAvailable = "PlatformNotAvailable"
	CodePlatformAlreadySet   = "PlatformAlreadySet"
	CodePlatformNotSupported = "PlatformNotSupported"
	CodeBotTrainingError     = "BotTrainingError"
	CodeCanNotSendMessage    = "CanNotSendMessage"
)

// NLPEngineError reports a failure of the language engine (500).
func NLPEngineError(message string, opts ...Option) *Error {
	return Internal(CodeNLPEngineError, message, opts...)
}

// BotDoesNotExist reports an unknown bot (404).
func BotDoesNotExist(message string, opts ...Option) *Error {
	return NotFound(CodeBotDoesNotExist, message, opts...)
}

// BotAlreadyExists reports a duplicate bot (409).
func BotAlreadyExists(message string, opts ...Option) *Error {
	return Conflict(CodeBotAlreadyExists, message, opts...)
}

// PlatformNotAvailable reports a platform that cannot be used right now (409).
func PlatformNotAvailable(platform, message string, opts ...Option) *Error {
	return withPlatform(Conflict(CodePlatformNotAvailable, message, opts...), platform)
}

// PlatformAlreadySet reports a bot already bound to a platform (409).
func PlatformAlreadySet(platform, message string, opts ...Option) *Error {
	return withPlatform(Conflict(CodePlatformAlreadySet, message, opts...), platform)
}

// PlatformNotSupported reports an unknown platform (409).
func PlatformNotSupported(platform, message string, opts ...Option) *Error {
	return withPlatform(Conflict(CodePlatformNotSupported, message, opts...), platform)
}

// BotTrainingError reports an invalid training request (400).
func BotTrainingError(message string, opts ...Option) *Error {
	return BadRequest(CodeBotTrainingError, message, opts...)
}

// CanNotSendMessage reports a message delivery failure (500).
func CanNotSendMessage(message string, opts ...Option) *Error {
	return Internal(CodeCanNotSendMessage, message, opts...)
}

func withPlatform(e *Error, platform string) *Error {
	e.PlatformName = platform
	return e
}
