// Package alerts implements the rule engine and webhook delivery for run
// outcomes. Rules are evaluated against the final record of each completed
// run; webhooks are delivered to Teams, Slack or generic HTTP targets.
package alerts
