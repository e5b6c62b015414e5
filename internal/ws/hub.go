package ws

import (
	"context"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/jandrishti/jandrishti-backend/internal/logger"
)

const defaultBroadcastBuffer = 256

// Envelope - формат сообщения, которое получает клиент.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub управляет подключениями и рассылает события всем клиентам.
// Множество клиентов принадлежит горутине Run.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	connected atomic.Int64
	dropped   atomic.Uint64
}

// NewHub создаёт хаб.
func NewHub() *Hub {
	return newHub(defaultBroadcastBuffer)
}

func newHub(buffer int) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, buffer),
		done:       make(chan struct{}),
	}
}

// Run обрабатывает регистрацию и рассылку до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.removeClient(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
		case client := <-h.unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					logger.L().WithField("client", client.id).Warn("ws hub: клиент не успевает, отключаем")
					h.removeClient(client)
				}
			}
		}
	}
}

// Register добавляет клиента. После остановки хаба вызов ничего не делает.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish кодирует событие и ставит его в очередь рассылки без блокировки.
// При переполнении очереди событие отбрасывается.
func (h *Hub) Publish(event string, payload interface{}) {
	raw, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		logger.L().WithError(err).WithField("event", event).Error("ws hub: не удалось сериализовать событие")
		return
	}

	select {
	case h.broadcast <- raw:
	default:
		h.dropped.Add(1)
		logger.L().WithFields(logrus.Fields{"event": event}).Warn("ws hub: очередь переполнена, событие отброшено")
	}
}

// ClientCount возвращает число подключённых клиентов.
func (h *Hub) ClientCount() int {
	return int(h.connected.Load())
}

// DroppedEvents возвращает число отброшенных событий.
func (h *Hub) DroppedEvents() uint64 {
	return h.dropped.Load()
}

func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closeSend()
	h.connected.Store(int64(len(h.clients)))
}
