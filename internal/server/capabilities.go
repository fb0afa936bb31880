package server

// standardCapabilities advertises the baseline IRCv3 set every connection
// negotiates against: message-tags, server-time and cap-notify are purely
// advisory to the wire codec, and sasl is only advertised: AUTHENTICATE is
// answered the same way whether or not sasl was negotiated (spec §4.8).
type standardCapabilities struct{}

func (standardCapabilities) Names() []string {
	return []string{"message-tags", "server-time", "cap-notify", "sasl"}
}

func (standardCapabilities) OnEnable(connID, name string)  {}
func (standardCapabilities) OnDisable(connID, name string) {}
