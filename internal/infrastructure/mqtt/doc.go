// Package mqtt connects onkyod to an MQTT broker.
//
// Receiver notifications are mirrored to retained state topics and
// command lines published to command topics are fed into the gateway,
// so home automation systems can drive a receiver without speaking the
// line protocol.
//
//	onkyod/state/<receiver>/<key>   "OK:volume:40" -> key volume, value 40
//	onkyod/command/<receiver>       payload "volume 40"
//	onkyod/command/all              every configured receiver
//	onkyod/system/status            online/offline (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllReceiverCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
package mqtt
