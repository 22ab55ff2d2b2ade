package domain

import "time"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

type NotificationType string

const (
	NotificationVehicleAvailable NotificationType = "VEHICLE_AVAILABLE"
	NotificationRefundProcessed  NotificationType = "REFUND_PROCESSED"
	NotificationBookingStatus    NotificationType = "BOOKING_STATUS"
)

// Notification is the channel-independent payload handed to a Notifier.
type Notification struct {
	Type         NotificationType  `json:"type"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	VehicleID    int32             `json:"vehicle_id,omitempty"`
	VehicleName  string            `json:"vehicle_name,omitempty"`
	BookingID    int32             `json:"booking_id,omitempty"`
	DesiredStart *time.Time        `json:"desired_start,omitempty"`
	DesiredEnd   *time.Time        `json:"desired_end,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// ChannelsFor lists the channels a user can be reached on, email first.
func ChannelsFor(u *User) []Channel {
	channels := make([]Channel, 0, 3)
	if u.Email != "" {
		channels = append(channels, ChannelEmail)
	}
	if u.PushToken != nil && *u.PushToken != "" {
		channels = append(channels, ChannelPush)
	}
	return append(channels, ChannelInApp)
}
