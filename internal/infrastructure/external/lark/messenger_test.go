package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessages struct {
	reqs []*larkim.CreateMessageReq
	resp *larkim.CreateMessageResp
	err  error
}

func (f *fakeMessages) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	id := "om_123"
	return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: &id}}, nil
}

func TestMessenger_SendMessage(t *testing.T) {
	fake := &fakeMessages{}
	m := newMessenger(fake, "", zap.NewNop())

	err := m.SendMessage(context.Background(), "meera@example.com", `Invoice "42" ready`)
	require.NoError(t, err)
	assert.Equal(t, ReceiveIDEmail, m.receiveIDType)

	require.Len(t, fake.reqs, 1)
	req := fake.reqs[0]
	require.NotNil(t, req.Body)
	assert.Equal(t, "meera@example.com", *req.Body.ReceiveId)
	assert.Equal(t, "text", *req.Body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*req.Body.Content), &content))
	assert.Equal(t, `Invoice "42" ready`, content["text"])
}

func TestMessenger_SendCardMessage(t *testing.T) {
	fake := &fakeMessages{}
	m := newMessenger(fake, ReceiveIDOpenID, zap.NewNop())

	card := map[string]interface{}{"header": map[string]interface{}{"template": "orange"}}
	require.NoError(t, m.SendCardMessage(context.Background(), "ou_abc", card))

	req := fake.reqs[0]
	assert.Equal(t, ReceiveIDOpenID, m.receiveIDType)
	assert.Equal(t, "interactive", *req.Body.MsgType)
	assert.JSONEq(t, `{"header":{"template":"orange"}}`, *req.Body.Content)
}

func TestMessenger_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeMessages
		to      string
		content string
		wantErr string
	}{
		{"empty receiver", &fakeMessages{}, "", "hi", "receiveID cannot be empty"},
		{"empty content", &fakeMessages{}, "a@b.c", "", "content cannot be empty"},
		{"transport", &fakeMessages{err: errors.New("dial tcp: timeout")}, "a@b.c", "hi", "failed to send message"},
		{
			name:    "api failure",
			fake:    &fakeMessages{resp: &larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230001, Msg: "invalid receive_id"}}},
			to:      "a@b.c",
			content: "hi",
			wantErr: "code=230001",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMessenger(tt.fake, ReceiveIDEmail, zap.NewNop())
			err := m.SendMessage(context.Background(), tt.to, tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	m := newMessenger(&fakeMessages{}, ReceiveIDEmail, zap.NewNop())
	assert.Error(t, m.SendCardMessage(context.Background(), "a@b.c", nil))
}
