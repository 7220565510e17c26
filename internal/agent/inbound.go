package agent

// InboundMessage is a user-authored text message lifted out of a webhook
// payload.
type InboundMessage struct {
	From string
	Body string
}

// extractInbound pulls inbound text messages out of a decoded webhook
// payload. It understands the Cloud API envelope
// (entry[].changes[].value.messages[]) and falls back to the flat
// single-message shape when the envelope yields nothing. Messages marked
// outbound or as SMB echoes are the platform relaying our own sends and are
// skipped.
func extractInbound(payload any) []InboundMessage {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil
	}

	var inbound []InboundMessage
	for _, msg := range envelopeMessages(root) {
		if isOutbound(msg) {
			continue
		}
		from, _ := msg["from"].(string)
		body := textBody(msg)
		if msg["type"] == "text" && from != "" && body != "" {
			inbound = append(inbound, InboundMessage{From: from, Body: body})
		}
	}
	if len(inbound) > 0 {
		return inbound
	}

	msg, ok := root["message"].(map[string]any)
	if !ok {
		return nil
	}
	if kapso, ok := msg["kapso"].(map[string]any); ok && kapso["direction"] == "outbound" {
		return nil
	}
	from, _ := msg["from"].(string)
	body := textBody(msg)
	if body == "" {
		if kapso, ok := msg["kapso"].(map[string]any); ok {
			body, _ = kapso["content"].(string)
		}
	}
	if msg["type"] == "text" && from != "" && body != "" {
		inbound = append(inbound, InboundMessage{From: from, Body: body})
	}
	return inbound
}

// envelopeMessages walks entry[].changes[].value.messages[].
func envelopeMessages(root map[string]any) []map[string]any {
	entries, ok := root["entry"].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		changes, ok := entry["changes"].([]any)
		if !ok {
			continue
		}
		for _, c := range changes {
			change, ok := c.(map[string]any)
			if !ok {
				continue
			}
			value, ok := change["value"].(map[string]any)
			if !ok {
				continue
			}
			messages, ok := value["messages"].([]any)
			if !ok {
				continue
			}
			for _, m := range messages {
				if msg, ok := m.(map[string]any); ok {
					out = append(out, msg)
				}
			}
		}
	}
	return out
}

func isOutbound(msg map[string]any) bool {
	kapso, ok := msg["kapso"].(map[string]any)
	if !ok {
		return false
	}
	return kapso["direction"] == "outbound" || kapso["source"] == "smb_message_echo"
}

func textBody(msg map[string]any) string {
	text, ok := msg["text"].(map[string]any)
	if !ok {
		return ""
	}
	body, _ := text["body"].(string)
	return body
}
