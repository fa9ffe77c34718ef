package update

const helpText = `# nudged

Gentle reminders that keep a work session moving.

## Keys

| Key | Action |
|-----|--------|
| n   | ask the planner for the next task |
| d   | mark the current task done |
| g   | still going on the current task |
| w   | switch to a different task |
| x   | stop the current task |
| p   | pause or resume all reminders |
| z   | snooze momentum nudges for a while |
| Z   | snooze check-ins for the rest of today |
| s   | open the threshold settings |
| t   | toggle desktop notifications |
| 1-3 | apply a preset (gentle, focused, sprint) |
| e   | re-evaluate reminders now |
| ?   | toggle this help |
| q   | quit |

## Reminder kinds

- **Momentum** nudges fire when nothing has been worked on for a while.
- **Check-ins** ask whether you are still on the current task.
- **Completion** prompts celebrate a finish and offer the next step.
`
