// Package ai generates text through external AI providers.
//
// The Manager tries providers in a fixed preference order and stops at the
// first success; OpenAI and Grok are both driven through the same
// OpenAI-compatible chat completions client. BuildSchedulePrompt renders the
// daily schedule prompt from prioritized tasks and fixed meetings.
package ai
