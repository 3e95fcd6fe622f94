package repositories

import (
	"chat-relay/domain"
	"net/url"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// roomSegment escapes the room id so that a ':' inside it can never
// make one room's prefix match another room's keys.
func roomSegment(roomID domain.RoomID) string {
	return url.QueryEscape(string(roomID))
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// DecodeMessage reads a value stored under a message key.
func DecodeMessage(data []byte, message *DiskMessage) error {
	return json.Unmarshal(data, message)
}
