package templates

func builtinTemplates() []Template {
	common := Data{
		"recipientName": "there",
		"eventName":     "your event",
		"eventDate":     "Date TBD",
		"eventLocation": "Location TBD",
		"clubName":      "Your club",
	}
	with := func(extra Data) Data {
		d := make(Data, len(common)+len(extra))
		for k, v := range common {
			d[k] = v
		}
		for k, v := range extra {
			d[k] = v
		}
		return d
	}
	eventDetails := func(d Data) []Detail {
		return []Detail{
			{Label: "Event", Value: d["eventName"]},
			{Label: "Date", Value: d["eventDate"]},
			{Label: "Location", Value: d["eventLocation"]},
			{Label: "Club", Value: d["clubName"]},
		}
	}
	action := func(text, url string) *Action {
		if url == "" {
			return nil
		}
		return &Action{Text: text, URL: url}
	}
	withNotes := func(paragraphs []string, notes string) []string {
		if notes != "" {
			paragraphs = append(paragraphs, "Notes: "+notes)
		}
		return paragraphs
	}

	return []Template{
		{
			ID:         EventRequestConfirmation,
			Defaults:   with(nil),
			DateFields: []string{"eventDate"},
			Subject:    func(d Data) string { return "We received your request: " + d["eventName"] },
			Build: func(d Data) Body {
				return Body{
					Heading:  "Event request received",
					Greeting: "Hello " + d["recipientName"] + ",",
					Paragraphs: withNotes([]string{
						"Thank you for submitting " + d["eventName"] + ". Your request is now waiting for review by the federation.",
						"You will receive another email once it has been approved or rejected.",
					}, d["notes"]),
					Details: eventDetails(d),
					Action:  action("View request", d["actionUrl"]),
					Closing: d["clubName"],
				}
			},
		},
		{
			ID:         EventApproved,
			Defaults:   with(nil),
			DateFields: []string{"eventDate"},
			Subject:    func(d Data) string { return "Approved: " + d["eventName"] },
			Build: func(d Data) Body {
				return Body{
					Heading:  "Your event has been approved",
					Greeting: "Hello " + d["recipientName"] + ",",
					Paragraphs: withNotes([]string{
						"Good news: " + d["eventName"] + " has been approved and is now listed on the federation calendar.",
					}, d["notes"]),
					Details: eventDetails(d),
					Action:  action("View event", d["actionUrl"]),
					Closing: d["clubName"],
				}
			},
		},
		{
			ID:         EventRejected,
			Defaults:   with(Data{"reason": "No reason was given."}),
			DateFields: []string{"eventDate"},
			Subject:    func(d Data) string { return "Not approved: " + d["eventName"] },
			Build: func(d Data) Body {
				return Body{
					Heading:  "Your event request was not approved",
					Greeting: "Hello " + d["recipientName"] + ",",
					Paragraphs: []string{
						"Unfortunately " + d["eventName"] + " could not be approved.",
						"Reason: " + d["reason"],
						"You can update the request and submit it again.",
					},
					Details: eventDetails(d),
					Action:  action("Edit request", d["actionUrl"]),
					Closing: d["clubName"],
				}
			},
		},
		{
			ID:         EventReminder,
			Defaults:   with(Data{"reminderText": "This is a reminder about an upcoming event."}),
			DateFields: []string{"eventDate"},
			Subject:    func(d Data) string { return "Reminder: " + d["eventName"] + " on " + d["eventDate"] },
			Build: func(d Data) Body {
				return Body{
					Heading:    "Upcoming event",
					Greeting:   "Hello " + d["recipientName"] + ",",
					Paragraphs: withNotes([]string{d["reminderText"]}, d["notes"]),
					Details:    eventDetails(d),
					Action:     action("Event details", d["actionUrl"]),
					Closing:    "See you there!",
				}
			},
		},
		{
			ID: AdminAlert,
			Defaults: Data{
				"alertTitle":   "Email queue alert",
				"alertMessage": "The email queue needs attention.",
				"severity":     "warning",
				"clubName":     "Email queue",
			},
			Subject: func(d Data) string { return "[" + d["severity"] + "] " + d["alertTitle"] },
			Build: func(d Data) Body {
				b := Body{
					Heading:    d["alertTitle"],
					Paragraphs: splitParagraphs(d["alertMessage"]),
					Action:     action("Open queue", d["actionUrl"]),
				}
				for _, key := range []string{"emailId", "lastError", "queueSize", "failedCount"} {
					if v := d[key]; v != "" {
						b.Details = append(b.Details, Detail{Label: key, Value: v})
					}
				}
				return b
			},
		},
	}
}
