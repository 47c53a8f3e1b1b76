package ingress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webordinary/switchboard/pkg/types"
)

func TestDecodeEmail(t *testing.T) {
	payload := `{
		"from": " Scott <ESCOTTSTER@GMAIL.COM> ",
		"subject": "site tweak",
		"body": "change the title to Hello",
		"messageId": "<CAOm123@mail.gmail.com>",
		"references": ["<origin@mail.gmail.com>"],
		"raw": {"spamScore": 0.1}
	}`
	msg, err := DecodeEmail([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, types.SourceEmail, msg.Source)
	assert.Equal(t, "escottster@gmail.com", msg.SenderIdentity)
	assert.Equal(t, "change the title to Hello", msg.Instruction)
	assert.Equal(t, "<CAOm123@mail.gmail.com>", msg.MessageID)
	assert.Equal(t, []string{"<origin@mail.gmail.com>"}, msg.References)
	assert.Equal(t, 0.1, msg.Raw["spamScore"])
}

func TestDecodeSMS(t *testing.T) {
	payload := `{
		"from": "+15551234567",
		"to": "+15557654321",
		"body": "make the logo bigger",
		"conversationId": "conv-42"
	}`
	msg, err := DecodeSMS([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, types.SourceSMS, msg.Source)
	assert.Equal(t, "+15551234567", msg.SenderIdentity)
	assert.Equal(t, "conv-42", msg.ConversationID)
	assert.Equal(t, "+15551234567", msg.From)
	assert.Equal(t, "+15557654321", msg.To)
}

func TestDecodeChat(t *testing.T) {
	payload := `{
		"sender": "U123ABC",
		"text": "swap the hero image",
		"threadId": "1726000000.000100",
		"messageId": "1726000001.000200"
	}`
	msg, err := DecodeChat([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, types.SourceChat, msg.Source)
	assert.Equal(t, "U123ABC", msg.SenderIdentity)
	assert.Equal(t, "1726000000.000100", msg.ChatThreadID)
	assert.Equal(t, "1726000001.000200", msg.ChatMessageID)
}

func TestDecodeDispatch(t *testing.T) {
	msg, err := Decode("sms", []byte(`{"from":"+1555","to":"+1666","body":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, types.SourceSMS, msg.Source)

	_, err = Decode("carrier-pigeon", []byte(`{}`))
	assert.Error(t, err)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := DecodeEmail([]byte(`{not json`))
	assert.Error(t, err)
}
