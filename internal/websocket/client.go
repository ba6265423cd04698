package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thereayou/artem-chat/internal/logger"
)

const (
	defaultWriteWait = 10 * time.Second
	defaultPongWait  = 60 * time.Second
	defaultReadLimit = 64 * 1024
	defaultQueueSize = 256
)

type Options struct {
	// Время ожидания записи
	WriteWait time.Duration
	// Время ожидания pong от клиента; ping уходит каждые 9/10 этого срока
	PongWait time.Duration
	// Максимальный размер входящего кадра
	ReadLimit int64
	// Размер очереди исходящих кадров
	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	return o
}

// Client - одно WebSocket соединение. Все исходящие кадры идут через
// очередь send и пишутся единственной горутиной WritePump.
type Client struct {
	ID   string
	conn *websocket.Conn
	opts Options
	log  *logger.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, opts Options, log *logger.Logger) *Client {
	opts = opts.withDefaults()
	c := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		opts: opts,
		send: make(chan []byte, opts.QueueSize),
		done: make(chan struct{}),
	}
	c.log = log.WithStr("conn_id", c.ID)

	conn.SetReadLimit(opts.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})
	return c
}

// ReadFrame блокируется до следующего текстового кадра.
// Бинарные кадры пропускаются.
func (c *Client) ReadFrame() ([]byte, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read error")
			}
			return nil, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

// ReadPump читает кадры до закрытия соединения и передаёт их handle по порядку.
func (c *Client) ReadPump(handle func(data []byte)) {
	for {
		data, err := c.ReadFrame()
		if err != nil {
			return
		}
		handle(data)
	}
}

// WritePump отправляет кадры из очереди и ping. После Close дописывает
// уже поставленные кадры и закрывает соединение.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.log.Debug().Err(err).Msg("websocket write error")
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
		drain:
			for {
				select {
				case message := <-c.send:
					if err := c.write(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					break drain
				}
			}
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(msgType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(msgType, data)
}

// SendFrame сериализует v в JSON и ставит в очередь без блокировки.
func (c *Client) SendFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

func (c *Client) SendRaw(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrClientQueueFull
	}
}

// Close просит WritePump завершиться. Повторные вызовы безопасны.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Logger возвращает логгер с conn_id этого соединения.
func (c *Client) Logger() *logger.Logger {
	return c.log
}

func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
