package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// defaults for when not provided in Config
	TcpKeepAliveInterval time.Duration = time.Second * 17
	TcpKeepAliveCount    uint16        = 2
	TcpDialTimeout       time.Duration = time.Second * 3
	TcpReconnectInterval time.Duration = time.Second * 5
	TcpReconnectLogEvery uint32        = 60

	StartupWait       time.Duration = time.Second * 5
	StartupGraceWait  time.Duration = time.Second * 2
	ElectionWait      time.Duration = time.Second * 2
	CoordinatorWait   time.Duration = time.Second * 4
	LeaderFailureWait time.Duration = time.Millisecond * 500
	NackWait          time.Duration = time.Millisecond * 300
	HandoverWait      time.Duration = time.Second * 3

	StartingChips int64 = 1000
)

type Config struct {
	Host     string `yaml:"host"`
	Instance string `yaml:"instance"`

	SelfAddress          string   `yaml:"self_address"`
	PeerAddressList      []string `yaml:"peer_address_list"`
	TcpKeepAliveInterval uint16   `yaml:"tcp_keep_alive_interval"` // seconds
	TcpKeepAliveCount    uint16   `yaml:"tcp_keep_alive_count"`
	TcpDialTimeout       uint16   `yaml:"tcp_dial_timeout"`       // seconds
	TcpReconnectInterval uint16   `yaml:"tcp_reconnect_interval"` // seconds
	TcpReconnectLogEvery uint32   `yaml:"tcp_reconnect_log_every"`

	// all waits in milliseconds
	StartupWait       uint16 `yaml:"startup_wait"`
	StartupGraceWait  uint16 `yaml:"startup_grace_wait"`
	MinPeerCount      uint16 `yaml:"min_peer_count"` // zero selects fixed StartupWait
	ElectionWait      uint16 `yaml:"election_wait"`
	CoordinatorWait   uint16 `yaml:"coordinator_wait"`
	LeaderFailureWait uint16 `yaml:"leader_failure_wait"`
	NackWait          uint16 `yaml:"nack_wait"`
	HandoverWait      uint16 `yaml:"handover_wait"`

	StartingChips    int64 `yaml:"starting_chips"`
	RotateOnRoundEnd bool  `yaml:"rotate_on_round_end"`

	LogPrefix string `yaml:"log_prefix"`
	LogDebug  bool   `yaml:"log_debug"`
}

func ReadConfig(file string) (*Config, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var c Config
	err = yaml.Unmarshal(raw, &c)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if c == nil {
		err := fmt.Errorf("nil config")
		log.Printf("%s", err.Error())
		return err
	}

	if c.Host == "" {
		err := fmt.Errorf("invalid Host=%s", c.Host)
		log.Printf("%s", err.Error())
		return err
	}

	if c.Instance == "" {
		err := fmt.Errorf("invalid Instance=%s", c.Instance)
		log.Printf("%s", err.Error())
		return err
	}

	if c.SelfAddress == "" {
		err := fmt.Errorf("invalid SelfAddress=%s", c.SelfAddress)
		log.Printf("%s", err.Error())
		return err
	}

	seen := make(map[string]struct{}, len(c.PeerAddressList))
	for _, address := range c.PeerAddressList {
		if address == "" {
			err := fmt.Errorf("invalid PeerAddressList=%+v", c.PeerAddressList)
			log.Printf("%s", err.Error())
			return err
		}

		if address == c.SelfAddress {
			err := fmt.Errorf("PeerAddressList=%+v must not contain SelfAddress=%s", c.PeerAddressList, c.SelfAddress)
			log.Printf("%s", err.Error())
			return err
		}

		_, found := seen[address]
		if found {
			err := fmt.Errorf("duplicate address=%s, invalid PeerAddressList=%+v", address, c.PeerAddressList)
			log.Printf("%s", err.Error())
			return err
		}
		seen[address] = struct{}{}
	}

	if int(c.MinPeerCount) > len(c.PeerAddressList) {
		err := fmt.Errorf("MinPeerCount=%d exceeds peer count %d", c.MinPeerCount, len(c.PeerAddressList))
		log.Printf("%s", err.Error())
		return err
	}

	if c.StartingChips < 0 {
		err := fmt.Errorf("invalid StartingChips=%d", c.StartingChips)
		log.Printf("%s", err.Error())
		return err
	}

	return nil
}

func millis(v uint16, d time.Duration) time.Duration {
	if v == 0 {
		return d
	}
	return time.Millisecond * time.Duration(v)
}

func seconds(v uint16, d time.Duration) time.Duration {
	if v == 0 {
		return d
	}
	return time.Second * time.Duration(v)
}

func (c *Config) KeepAliveInterval() time.Duration {
	return seconds(c.TcpKeepAliveInterval, TcpKeepAliveInterval)
}

func (c *Config) KeepAliveCount() uint16 {
	if c.TcpKeepAliveCount == 0 {
		return TcpKeepAliveCount
	}
	return c.TcpKeepAliveCount
}

func (c *Config) DialTimeout() time.Duration {
	return seconds(c.TcpDialTimeout, TcpDialTimeout)
}

func (c *Config) ReconnectInterval() time.Duration {
	return seconds(c.TcpReconnectInterval, TcpReconnectInterval)
}

func (c *Config) ReconnectLogEvery() uint32 {
	if c.TcpReconnectLogEvery == 0 {
		return TcpReconnectLogEvery
	}
	return c.TcpReconnectLogEvery
}

func (c *Config) StartupWaitDuration() time.Duration {
	return millis(c.StartupWait, StartupWait)
}

func (c *Config) StartupGraceWaitDuration() time.Duration {
	return millis(c.StartupGraceWait, StartupGraceWait)
}

func (c *Config) ElectionWaitDuration() time.Duration {
	return millis(c.ElectionWait, ElectionWait)
}

func (c *Config) CoordinatorWaitDuration() time.Duration {
	return millis(c.CoordinatorWait, CoordinatorWait)
}

func (c *Config) LeaderFailureWaitDuration() time.Duration {
	return millis(c.LeaderFailureWait, LeaderFailureWait)
}

func (c *Config) NackWaitDuration() time.Duration {
	return millis(c.NackWait, NackWait)
}

func (c *Config) HandoverWaitDuration() time.Duration {
	return millis(c.HandoverWait, HandoverWait)
}

func (c *Config) Chips() int64 {
	if c.StartingChips == 0 {
		return StartingChips
	}
	return c.StartingChips
}
