package employees

// Actions reported in notices and operation metrics.
const (
	ActionFetch  = "fetch"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionNotify = "notify"
)

type NoticeStatus string

const (
	NoticeSuccess NoticeStatus = "success"
	NoticeFailure NoticeStatus = "failure"
)

// Notice is a user-facing acknowledgment of a finished operation. The caller decides how to show it.
type Notice struct {
	Action  string       `json:"action"`
	Status  NoticeStatus `json:"status"`
	Message string       `json:"message"`
}

// Notices are reported in the order the operations finished.
type Notices []Notice

// Failed reports whether any notice is a failure.
func (n Notices) Failed() bool {
	for _, notice := range n {
		if notice.Status == NoticeFailure {
			return true
		}
	}
	return false
}

func success(action, message string) Notice {
	return Notice{Action: action, Status: NoticeSuccess, Message: message}
}

func failure(action, message string) Notice {
	return Notice{Action: action, Status: NoticeFailure, Message: message}
}
