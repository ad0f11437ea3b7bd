package config

type WorkerKeyStruct struct {
	PersistAttemptsQueue   string
	PersistViolationsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAttemptsQueue:   "persist_attempts_queue",
	PersistViolationsQueue: "persist_violations_queue",
}
