package flow_test

import (
	"fmt"

	"ocrbot/internal/cache"
	"ocrbot/internal/flow"
)

// Example shows the payload carried by a result button and how a press is decoded.
func Example() {
	key := cache.Key{ChatID: 12345, MessageID: 67}
	payload := flow.Token{Action: flow.ActionEscalate, Key: key}.Encode()
	fmt.Println(payload)

	tok, err := flow.ParseToken(payload)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(tok.Action, tok.Key.ChatID, tok.Key.MessageID)
	// Output:
	// useai|12345|67
	// useai 12345 67
}

func ExampleTruncate() {
	fmt.Printf("%q\n", flow.Truncate("recognized text", 10))
	// Output: "recognized\n...truncated"
}
