package emailsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"

	"github.com/trezcool/darasa/core"
)

// consoleService writes emails to stdout; for local development.
type consoleService struct {
	subjPrefix string
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config) *consoleService {
	return &consoleService{subjPrefix: "[" + conf.AppName + "] "}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	var wg sync.WaitGroup
	for _, msg := range messages {
		if !(msg.HasRecipients() && msg.HasContent()) {
			continue
		}
		wg.Add(1)
		go func(msg *core.EmailMessage) {
			defer wg.Done()
			svc.print(msg)
		}(msg)
	}
	wg.Wait()
}

func (svc consoleService) print(msg *core.EmailMessage) {
	var sb strings.Builder
	sb.WriteString("\n---------------------------------------------------------------------\n")
	sb.WriteString(fmt.Sprintf("To: %s\n", joinAddresses(msg.To)))
	if len(msg.Cc) > 0 {
		sb.WriteString(fmt.Sprintf("Cc: %s\n", joinAddresses(msg.Cc)))
	}
	sb.WriteString(fmt.Sprintf("Subject: %s%s\n\n", svc.subjPrefix, msg.Subject))
	sb.WriteString(msg.BodyStr)
	sb.WriteString("\n---------------------------------------------------------------------\n")
	log.Print(sb.String())
}

func joinAddresses(addrs []mail.Address) string {
	strs := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		strs = append(strs, addr.String())
	}
	return strings.Join(strs, ", ")
}
