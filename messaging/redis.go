package messaging

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

type RedisMQClient struct {
	RedisClient *redis.Client `json:"-"`

	channel string
}

func (redisMQ *RedisMQClient) String() string {
	return "redis"
}

func (redisMQ *RedisMQClient) Channel() string {
	return redisMQ.channel
}

func (redisMQ *RedisMQClient) Connect(ctx context.Context, clientName string, args map[string]interface{}) error {
	address, err := getString(args, "redisMQ", "Address")
	if err != nil {
		return err
	}

	password, _ := GetEntry(args, "Password").(string)

	var db int

	switch value := GetEntry(args, "DB").(type) {
	case int:
		db = value
	case string:
		db, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("redisMQ connect db atoi: %w", err)
		}
	}

	redisMQ.channel, _ = GetEntry(args, "Channel").(string)

	redisMQ.RedisClient = redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			if clientName == "" {
				return nil
			}

			return cn.ClientSetName(ctx, clientName).Err()
		},
	})

	err = redisMQ.RedisClient.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("redisMQ connect ping: %w", err)
	}

	return nil
}

func (redisMQ *RedisMQClient) Publish(ctx context.Context, channelName string, data []byte) error {
	err := redisMQ.RedisClient.Publish(ctx, channelName, data).Err()
	if err != nil {
		return fmt.Errorf("redisMQ publish: %w", err)
	}

	return nil
}

func (redisMQ *RedisMQClient) Close() error {
	if redisMQ.RedisClient == nil {
		return nil
	}

	err := redisMQ.RedisClient.Close()
	redisMQ.RedisClient = nil

	return err
}
