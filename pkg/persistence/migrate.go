package persistence

import (
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/rs/zerolog/log"
)

// Backfill walks a decoded snapshot and inserts the documented default for
// every field that an older client did not write, at every level of the tree.
// Keys holding null are treated as missing. Existing values are never
// overwritten.
func Backfill(root map[string]interface{}) {
	version := 0
	if v, ok := root["schemaVersion"].(float64); ok {
		version = int(v)
	} else if v, ok := root["schemaVersion"].(int); ok {
		version = v
	}
	if version < conversation.SchemaVersion {
		log.Debug().
			Int("from", version).
			Int("to", conversation.SchemaVersion).
			Msg("backfilling snapshot from older schema")
	}

	setDefault(root, "channels", []interface{}{})
	ui := ensureMap(root, "globalUiSettings")
	setDefault(ui, "backgroundImage", nil)
	setDefault(root, "availableModels", []interface{}{})
	setDefault(root, "modelsLoaded", false)
	for _, m := range objects(root["availableModels"]) {
		backfillModel(m)
	}

	defaults := ensureMap(root, "defaultSettings")
	backfillChannelConfig(ensureMap(defaults, "channel"))
	threadDefaults := ensureMap(defaults, "thread")
	backfillTogglePrompt(ensureMap(threadDefaults, "systemPrompt"))

	for _, c := range objects(root["channels"]) {
		backfillChannel(c)
	}
	root["schemaVersion"] = conversation.SchemaVersion
}

// backfillModel accepts the snake_case catalogue entries written by older
// clients, keyed by name rather than id.
func backfillModel(m map[string]interface{}) {
	renameKey(m, "name", "id")
	renameKey(m, "display_name", "displayName")
	renameKey(m, "input_token_limit", "inputTokenLimit")
	renameKey(m, "output_token_limit", "outputTokenLimit")

	if name, _ := m["displayName"].(string); name == "" {
		m["displayName"] = m["id"]
	}
	setDefault(m, "description", "")
	setDefault(m, "version", conversation.DefaultModelVersion)
	setDefault(m, "inputTokenLimit", conversation.DefaultInputTokenLimit)
	setDefault(m, "outputTokenLimit", conversation.DefaultOutputTokenLimit)
}

// renameKey moves from to to unless to is already set.
func renameKey(m map[string]interface{}, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	setDefault(m, to, v)
}

func backfillChannel(c map[string]interface{}) {
	setDefault(c, "name", conversation.DefaultChannelName)
	backfillChannelConfig(ensureMap(c, "config"))
	backfillIcons(ensureMap(c, "uiSettings"))
	setDefault(c, "sharedFiles", []interface{}{})
	setDefault(c, "threads", []interface{}{})
	for _, t := range objects(c["threads"]) {
		backfillThread(t)
	}
}

func backfillChannelConfig(cfg map[string]interface{}) {
	setDefault(cfg, "stream", true)
	setDefault(cfg, "useWebSearch", false)
	setDefault(cfg, "selectedModel", nil)

	g := ensureMap(cfg, "generationConfig")
	setDefault(g, "temperature", conversation.DefaultTemperature)
	setDefault(g, "top_p", conversation.DefaultTopP)
	setDefault(g, "top_k", nil)
	setDefault(g, "max_output_tokens", conversation.DefaultMaxOutputTokens)

	backfillTogglePrompt(ensureMap(cfg, "dummyUserPrompt"))
	backfillTogglePrompt(ensureMap(cfg, "dummyModelPrompt"))
	backfillTogglePrompt(ensureMap(cfg, "systemPrompt"))
}

func backfillThread(t map[string]interface{}) {
	setDefault(t, "name", conversation.DefaultThreadNamePrefix)
	setDefault(t, "history", []interface{}{})
	backfillIcons(ensureMap(t, "uiSettings"))
	setDefault(t, "useChannelIcons", true)
	backfillTogglePrompt(ensureMap(t, "systemPrompt"))
	setDefault(t, "useChannelFiles", true)
	for _, m := range objects(t["history"]) {
		backfillMessage(m)
	}
}

func backfillMessage(m map[string]interface{}) {
	setDefault(m, "role", string(conversation.RoleUser))
	setDefault(m, "activePartIndex", 0)
	parts, ok := m["parts"].([]interface{})
	if !ok || len(parts) == 0 {
		m["parts"] = []interface{}{map[string]interface{}{"text": ""}}
	}
}

func backfillTogglePrompt(p map[string]interface{}) {
	setDefault(p, "enabled", false)
	setDefault(p, "text", "")
}

func backfillIcons(p map[string]interface{}) {
	setDefault(p, "userIcon", nil)
	setDefault(p, "modelIcon", nil)
}

// setDefault only inserts value when the key is absent or null. A nil value
// therefore just records that the key is known.
func setDefault(m map[string]interface{}, key string, value interface{}) {
	if v, ok := m[key]; ok && v != nil {
		return
	}
	m[key] = value
}

func ensureMap(m map[string]interface{}, key string) map[string]interface{} {
	if sub, ok := m[key].(map[string]interface{}); ok {
		return sub
	}
	sub := map[string]interface{}{}
	m[key] = sub
	return sub
}

func objects(v interface{}) []map[string]interface{} {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	ret := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if o, ok := item.(map[string]interface{}); ok {
			ret = append(ret, o)
		}
	}
	return ret
}
