package mqtt

import "strings"

// Node topics. The node side of the contract is fixed: any authorization
// service consuming ScanTopic and publishing on LoginTopic can drive a relay.
const (
	ScanTopic  = "RFID_SCAN"
	LoginTopic = "RFID_LOGIN"
)

const RootLevel string = "rfid"

const (
	CheckInLevel = "check_in"
)

const CheckInTopic = RootLevel + "/" + CheckInLevel

// CheckInTopicFor is the per-client check-in topic a node publishes its
// client id on.
func CheckInTopicFor(clientID string) string {
	return CheckInTopic + "/" + clientID
}

// ClientIDFromTopic returns the last level of a per-client topic.
func ClientIDFromTopic(topic string) (string, bool) {
	chunks := strings.Split(topic, "/")
	if len(chunks) < 3 || chunks[0] != RootLevel {
		return "", false
	}
	clientID := chunks[len(chunks)-1]
	if clientID == "" {
		return "", false
	}
	return clientID, true
}
