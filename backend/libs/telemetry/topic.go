package telemetry

import (
	"fmt"
	"strings"
)

const (
	topicPrefix = "device/"
	topicSuffix = "/devicePayload"

	// PayloadTopicFilter matches every device payload topic.
	PayloadTopicFilter = "device/+/devicePayload"
)

// PayloadTopic returns the publish topic for a device.
func PayloadTopic(deviceID string) string {
	return fmt.Sprintf("%s%s%s", topicPrefix, deviceID, topicSuffix)
}

// DeviceFromTopic extracts the device id from a payload topic.
func DeviceFromTopic(topic string) (string, bool) {
	if len(topic) <= len(topicPrefix)+len(topicSuffix) ||
		!strings.HasPrefix(topic, topicPrefix) || !strings.HasSuffix(topic, topicSuffix) {
		return "", false
	}
	id := topic[len(topicPrefix) : len(topic)-len(topicSuffix)]
	if strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
