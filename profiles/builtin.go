package profiles

// -----------------------------------------------------------------------------
// Embedded board profiles
//
// Key: FQBN
// Val: raw JSON profile
// -----------------------------------------------------------------------------

const profHost = `{
  "fqbn": "smce:sim:host",
  "name": "Host simulation board",
  "arch": "host",
  "board": {
    "pins": [0, 1, 2, 3],
    "gpio_drivers": [
      {"pin_id": 0, "digital": {"read": true, "write": true}},
      {"pin_id": 1, "digital": {"read": true, "write": true}},
      {"pin_id": 2, "analog": {"read": true, "write": true}},
      {"pin_id": 3, "digital": {"read": true, "write": true}, "analog": {"read": true, "write": true}}
    ],
    "uart_channels": [
      {"baud_rate": 115200, "rx_buffer_length": 512, "tx_buffer_length": 512, "flushing_threshold": 0}
    ],
    "frame_buffers": [{"key": 0, "direction": "out"}]
  }
}`

const profNano = `{
  "fqbn": "arduino:avr:nano",
  "name": "Arduino Nano",
  "arch": "avr",
  "compile_defs": ["ARDUINO_AVR_NANO"],
  "board": {
    "pins": [0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21],
    "gpio_drivers": [
      {"pin_id": 2, "digital": {"read": true, "write": true}},
      {"pin_id": 3, "digital": {"read": true, "write": true}, "analog": {"read": false, "write": true}},
      {"pin_id": 4, "digital": {"read": true, "write": true}},
      {"pin_id": 5, "digital": {"read": true, "write": true}, "analog": {"read": false, "write": true}},
      {"pin_id": 6, "digital": {"read": true, "write": true}, "analog": {"read": false, "write": true}},
      {"pin_id": 7, "digital": {"read": true, "write": true}},
      {"pin_id": 8, "digital": {"read": true, "write": true}},
      {"pin_id": 9, "digital": {"read": true, "write": true}, "analog": {"read": false, "write": true}},
      {"pin_id": 13, "digital": {"read": true, "write": true}},
      {"pin_id": 14, "digital": {"read": true, "write": true}, "analog": {"read": true, "write": false}},
      {"pin_id": 15, "digital": {"read": true, "write": true}, "analog": {"read": true, "write": false}},
      {"pin_id": 20, "analog": {"read": true, "write": false}},
      {"pin_id": 21, "analog": {"read": true, "write": false}}
    ],
    "uart_channels": [
      {"rx_pin_override": 0, "tx_pin_override": 1, "baud_rate": 9600, "rx_buffer_length": 64, "tx_buffer_length": 64, "flushing_threshold": 0}
    ],
    "sd_cards": [{"cspin": 10, "root_dir": "."}]
  }
}`

const profUno = `{
  "fqbn": "arduino:avr:uno",
  "name": "Arduino Uno",
  "arch": "avr",
  "compile_defs": ["ARDUINO_AVR_UNO"],
  "board": {
    "pins": [0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19],
    "gpio_drivers": [
      {"pin_id": 2, "digital": {"read": true, "write": true}},
      {"pin_id": 3, "digital": {"read": true, "write": true}, "analog": {"read": false, "write": true}},
      {"pin_id": 13, "digital": {"read": true, "write": true}},
      {"pin_id": 14, "digital": {"read": true, "write": true}, "analog": {"read": true, "write": false}},
      {"pin_id": 15, "digital": {"read": true, "write": true}, "analog": {"read": true, "write": false}}
    ],
    "uart_channels": [
      {"rx_pin_override": 0, "tx_pin_override": 1, "baud_rate": 9600, "rx_buffer_length": 64, "tx_buffer_length": 64, "flushing_threshold": 0}
    ],
    "sd_cards": [{"cspin": 10, "root_dir": "."}]
  }
}`

const profESP32 = `{
  "fqbn": "esp32:esp32:esp32",
  "name": "ESP32 Dev Module",
  "arch": "esp32",
  "compile_defs": ["ARDUINO_ESP32_DEV"],
  "board": {
    "pins": [0, 2, 4, 5, 12, 13, 14, 15, 25, 26, 27, 32, 33, 34, 35],
    "gpio_drivers": [
      {"pin_id": 2, "digital": {"read": true, "write": true}},
      {"pin_id": 4, "digital": {"read": true, "write": true}},
      {"pin_id": 25, "digital": {"read": true, "write": true}, "analog": {"read": true, "write": true}},
      {"pin_id": 26, "digital": {"read": true, "write": true}, "analog": {"read": true, "write": true}},
      {"pin_id": 34, "analog": {"read": true, "write": false}},
      {"pin_id": 35, "analog": {"read": true, "write": false}}
    ],
    "uart_channels": [
      {"baud_rate": 115200, "rx_buffer_length": 256, "tx_buffer_length": 256, "flushing_threshold": 0},
      {"rx_pin_override": 32, "tx_pin_override": 33, "baud_rate": 9600, "rx_buffer_length": 128, "tx_buffer_length": 128, "flushing_threshold": 16}
    ],
    "sd_cards": [{"cspin": 5, "root_dir": "."}],
    "frame_buffers": [{"key": 0, "direction": "in"}]
  }
}`

var embeddedProfiles = map[string][]byte{
	"smce:sim:host":     []byte(profHost),
	"arduino:avr:nano":  []byte(profNano),
	"arduino:avr:uno":   []byte(profUno),
	"esp32:esp32:esp32": []byte(profESP32),
}
