package mdp

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// MMIHandler answers Majordomo Management Interface probes on behalf of a
// Broker. The only implemented probe is mmi.service.
type MMIHandler struct {
	broker *Broker
}

// NewMMIHandler creates an MMI handler bound to broker.
func NewMMIHandler(broker *Broker) *MMIHandler {
	return &MMIHandler{broker: broker}
}

// IsMMIService reports whether serviceName is in the reserved mmi.
// namespace.
func IsMMIService(serviceName string) bool {
	return strings.HasPrefix(serviceName, MMINamespace)
}

// HandleRequest answers an internal service request. request holds the
// remaining client payload frames; for mmi.service the last frame is the
// name of the service being probed.
func (m *MMIHandler) HandleRequest(service string, request []string) string {
	log.WithFields(log.Fields{"service": service, "request": request}).Debug("handling MMI request")

	if service != MMIService {
		log.WithField("service", service).Warn("unknown MMI service requested")
		return MMICodeNotImplemented
	}
	if len(request) == 0 {
		return MMICodeNotFound
	}

	name := request[len(request)-1]
	svc, exists := m.broker.services[name]
	if exists && len(svc.waiting) > 0 {
		return MMICodeOK
	}
	return MMICodeNotFound
}
