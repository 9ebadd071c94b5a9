package broadcast

import (
	"context"
	"sync"

	"github.com/seventv/common/sync_map"
)

type mockState struct {
	arr []Message
	mtx sync.Mutex
}

type MockInstance struct {
	mp   *sync_map.Map[string, *mockState]
	fail error
	mtx  sync.Mutex
}

func NewMock() *MockInstance {
	return &MockInstance{
		mp: &sync_map.Map[string, *mockState]{},
	}
}

// SetError makes every following publish fail with err, nil restores delivery
func (i *MockInstance) SetError(err error) {
	i.mtx.Lock()
	i.fail = err
	i.mtx.Unlock()
}

func (i *MockInstance) Publish(ctx context.Context, channel string, payload []byte) error {
	i.mtx.Lock()
	if i.fail != nil {
		err := i.fail
		i.mtx.Unlock()

		return err
	}
	i.mtx.Unlock()

	v, _ := i.mp.LoadOrStore(channel, &mockState{})
	v.mtx.Lock()
	defer v.mtx.Unlock()

	body := make([]byte, len(payload))
	copy(body, payload)

	v.arr = append(v.arr, Message{
		Channel: channel,
		Payload: body,
	})

	return nil
}

// Messages returns everything published to a channel, oldest first
func (i *MockInstance) Messages(channel string) []Message {
	v, ok := i.mp.Load(channel)
	if !ok {
		return nil
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()

	result := make([]Message, len(v.arr))
	copy(result, v.arr)

	return result
}

func (i *MockInstance) Channels() []string {
	result := []string{}

	i.mp.Range(func(key string, value *mockState) bool {
		result = append(result, key)
		return true
	})

	return result
}
